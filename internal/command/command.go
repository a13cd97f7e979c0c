// Package command implements the textual mutation grammar carried inside
// committed log entries: "SET <key> <value>" and "DELETE <key>".
package command

import (
	"fmt"
	"strings"
)

type Op int

const (
	OpSet Op = iota
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpSet:
		return "SET"
	case OpDelete:
		return "DELETE"
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

// Command is the decoded form of a normal entry's payload.
type Command struct {
	Op    Op
	Key   string
	Value string
}

func Set(key, value string) Command {
	return Command{Op: OpSet, Key: key, Value: value}
}

func Delete(key string) Command {
	return Command{Op: OpDelete, Key: key}
}

// Encode produces the canonical textual form of a command. Keys and
// values must not contain whitespace; the grammar has no escaping.
func (c Command) Encode() []byte {
	switch c.Op {
	case OpDelete:
		return []byte("DELETE " + c.Key)
	default:
		return []byte("SET " + c.Key + " " + c.Value)
	}
}

// Decode parses an entry payload back into a Command. It is total:
// any payload that is not exactly "SET <key> <value>" or
// "DELETE <key>" yields ok=false and is meant to be dropped silently.
// Malformed proposals are not surfaced as errors to the proposer.
func Decode(data []byte) (Command, bool) {
	tokens := strings.Fields(string(data))

	switch len(tokens) {
	case 3:
		if tokens[0] != "SET" {
			return Command{}, false
		}
		return Command{Op: OpSet, Key: tokens[1], Value: tokens[2]}, true
	case 2:
		if tokens[0] != "DELETE" {
			return Command{}, false
		}
		return Command{Op: OpDelete, Key: tokens[1]}, true
	default:
		return Command{}, false
	}
}
