package lazindex

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

// The index is stored as the protobuf message
//
//	message Item {
//	  uint32 type = 1;
//	  uint32 size = 2;
//	  uint32 version = 3;
//	}
//
//	message Index {
//	  repeated Item items = 1;
//	  uint32 compressor = 2;
//	  uint32 chunk_size = 3;
//	  repeated uint32 point_counts = 4;
//	  repeated uint32 byte_lengths = 5;
//	}
//
// The descriptors are built at startup, so no generated code is needed.

var (
	itemMessage  protoreflect.MessageDescriptor
	indexMessage protoreflect.MessageDescriptor
)

// field numbers
const (
	itemType    = 1
	itemSize    = 2
	itemVersion = 3

	indexItems       = 1
	indexCompressor  = 2
	indexChunkSize   = 3
	indexPointCounts = 4
	indexByteLengths = 5
)

func init() {
	file, err := protodesc.NewFile(schema(), new(protoregistry.Files))
	if err != nil {
		panic("lazindex: invalid schema: " + err.Error())
	}
	itemMessage = file.Messages().ByName("Item")
	indexMessage = file.Messages().ByName("Index")
}

func scalar(name string, number int32) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
		Type:   descriptorpb.FieldDescriptorProto_TYPE_UINT32.Enum(),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
	}
}

func repeated(f *descriptorpb.FieldDescriptorProto) *descriptorpb.FieldDescriptorProto {
	f.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	return f
}

func schema() *descriptorpb.FileDescriptorProto {
	items := repeated(&descriptorpb.FieldDescriptorProto{
		Name:     proto.String("items"),
		Number:   proto.Int32(indexItems),
		Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
		TypeName: proto.String(".lazindex.Item"),
	})

	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String("lazindex.proto"),
		Package: proto.String("lazindex"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("Item"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalar("type", itemType),
					scalar("size", itemSize),
					scalar("version", itemVersion),
				},
			},
			{
				Name: proto.String("Index"),
				Field: []*descriptorpb.FieldDescriptorProto{
					items,
					scalar("compressor", indexCompressor),
					scalar("chunk_size", indexChunkSize),
					repeated(scalar("point_counts", indexPointCounts)),
					repeated(scalar("byte_lengths", indexByteLengths)),
				},
			},
		},
	}
}
