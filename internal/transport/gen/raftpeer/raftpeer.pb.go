package raftpeer

import (
	reflect "reflect"
	sync "sync"
	unsafe "unsafe"

	protoreflect "google.golang.org/protobuf/reflect/protoreflect"
	protoimpl "google.golang.org/protobuf/runtime/protoimpl"
)

const (
	_ = protoimpl.EnforceVersion(20 - protoimpl.MinVersion)

	_ = protoimpl.EnforceVersion(protoimpl.MaxVersion - 20)
)

type RaftMessage struct {
	state         protoimpl.MessageState `protogen:"open.v1"`
	Data          []byte                 `protobuf:"bytes,1,opt,name=data,proto3" json:"data,omitempty"`
	unknownFields protoimpl.UnknownFields
	sizeCache     protoimpl.SizeCache
}

func (x *RaftMessage) Reset() {
	*x = RaftMessage{}
	mi := &file_raftpeer_proto_msgTypes[0]
	ms := protoimpl.X.MessageStateOf(protoimpl.Pointer(x))
	ms.StoreMessageInfo(mi)
}

func (x *RaftMessage) String() string {
	return protoimpl.X.MessageStringOf(x)
}

func (*RaftMessage) ProtoMessage() {}

func (x *RaftMessage) ProtoReflect() protoreflect.Message {
	mi := &file_raftpeer_proto_msgTypes[0]
	if x != nil {
		ms := protoimpl.X.MessageStateOf(protoimpl.Pointer(x))
		if ms.LoadMessageInfo() == nil {
			ms.StoreMessageInfo(mi)
		}
		return ms
	}
	return mi.MessageOf(x)
}

func (*RaftMessage) Descriptor() ([]byte, []int) {
	return file_raftpeer_proto_rawDescGZIP(), []int{0}
}

func (x *RaftMessage) GetData() []byte {
	if x != nil {
		return x.Data
	}
	return nil
}

type RaftMessageResponse struct {
	state         protoimpl.MessageState `protogen:"open.v1"`
	Ok            bool                   `protobuf:"varint,1,opt,name=ok,proto3" json:"ok,omitempty"`
	unknownFields protoimpl.UnknownFields
	sizeCache     protoimpl.SizeCache
}

func (x *RaftMessageResponse) Reset() {
	*x = RaftMessageResponse{}
	mi := &file_raftpeer_proto_msgTypes[1]
	ms := protoimpl.X.MessageStateOf(protoimpl.Pointer(x))
	ms.StoreMessageInfo(mi)
}

func (x *RaftMessageResponse) String() string {
	return protoimpl.X.MessageStringOf(x)
}

func (*RaftMessageResponse) ProtoMessage() {}

func (x *RaftMessageResponse) ProtoReflect() protoreflect.Message {
	mi := &file_raftpeer_proto_msgTypes[1]
	if x != nil {
		ms := protoimpl.X.MessageStateOf(protoimpl.Pointer(x))
		if ms.LoadMessageInfo() == nil {
			ms.StoreMessageInfo(mi)
		}
		return ms
	}
	return mi.MessageOf(x)
}

func (*RaftMessageResponse) Descriptor() ([]byte, []int) {
	return file_raftpeer_proto_rawDescGZIP(), []int{1}
}

func (x *RaftMessageResponse) GetOk() bool {
	if x != nil {
		return x.Ok
	}
	return false
}

var File_raftpeer_proto protoreflect.FileDescriptor

const file_raftpeer_proto_rawDesc = "" +
	"\n" +
	"\x0eraftpeer.proto\x12\braftpeer\"!\n" +
	"\vRaftMessage\x12\x12\n" +
	"\x04data\x18\x01 \x01(\fR\x04data\"%\n" +
	"\x13RaftMessageResponse\x12\x0e\n" +
	"\x02ok\x18\x01 \x01(\bR\x02ok2X\n" +
	"\rRaftTransport\x12G\n" +
	"\x0fSendRaftMessage\x12\x15.raftpeer.RaftMessage\x1a\x1d.raftpeer.RaftMessageResponseB*Z(quorumkv/internal/transport/gen/raftpeerb\x06proto3"

var (
	file_raftpeer_proto_rawDescOnce sync.Once
	file_raftpeer_proto_rawDescData []byte
)

func file_raftpeer_proto_rawDescGZIP() []byte {
	file_raftpeer_proto_rawDescOnce.Do(func() {
		file_raftpeer_proto_rawDescData = protoimpl.X.CompressGZIP(unsafe.Slice(unsafe.StringData(file_raftpeer_proto_rawDesc), len(file_raftpeer_proto_rawDesc)))
	})
	return file_raftpeer_proto_rawDescData
}

var file_raftpeer_proto_msgTypes = make([]protoimpl.MessageInfo, 2)
var file_raftpeer_proto_goTypes = []any{
	(*RaftMessage)(nil),         // 0: raftpeer.RaftMessage
	(*RaftMessageResponse)(nil), // 1: raftpeer.RaftMessageResponse
}
var file_raftpeer_proto_depIdxs = []int32{
	0, // 0: raftpeer.RaftTransport.SendRaftMessage:input_type -> raftpeer.RaftMessage
	1, // 1: raftpeer.RaftTransport.SendRaftMessage:output_type -> raftpeer.RaftMessageResponse
	1, // [1:2] is the sub-list for method output_type
	0, // [0:1] is the sub-list for method input_type
	0, // [0:0] is the sub-list for extension type_name
	0, // [0:0] is the sub-list for extension extendee
	0, // [0:0] is the sub-list for field type_name
}

func init() { file_raftpeer_proto_init() }
func file_raftpeer_proto_init() {
	if File_raftpeer_proto != nil {
		return
	}
	type x struct{}
	out := protoimpl.TypeBuilder{
		File: protoimpl.DescBuilder{
			GoPackagePath: reflect.TypeOf(x{}).PkgPath(),
			RawDescriptor: unsafe.Slice(unsafe.StringData(file_raftpeer_proto_rawDesc), len(file_raftpeer_proto_rawDesc)),
			NumEnums:      0,
			NumMessages:   2,
			NumExtensions: 0,
			NumServices:   1,
		},
		GoTypes:           file_raftpeer_proto_goTypes,
		DependencyIndexes: file_raftpeer_proto_depIdxs,
		MessageInfos:      file_raftpeer_proto_msgTypes,
	}.Build()
	File_raftpeer_proto = out.File
	file_raftpeer_proto_goTypes = nil
	file_raftpeer_proto_depIdxs = nil
}
