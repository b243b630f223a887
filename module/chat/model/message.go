package model

// Message field names for the mongo store.
const (
	MessageFieldID             = "_id"
	MessageFieldConversationID = "conversation_id"
	MessageFieldSenderID       = "sender_id"
	MessageFieldTs             = "ts"
	MessageFieldSeq            = "seq"
	MessageFieldText           = "text"
	MessageFieldAttachment     = "attachment"
	MessageFieldReadBy         = "read_by"

	MessageTableName = "message"
)

// Media kinds accepted by the attach path.
const (
	MediaKindImage = "image"
	MediaKindVideo = "video"
)

// Attachment references a binary already placed in the object store; the
// message record never carries the bytes themselves.
type Attachment struct {
	URL  string `bson:"url" json:"url"`
	Kind string `bson:"kind" json:"kind"` // image | video
	Name string `bson:"name,omitempty" json:"name,omitempty"`
	Size int64  `bson:"size,omitempty" json:"size,omitempty"`
}

// Message is immutable once persisted except for ReadBy additions.
// (Ts, Seq) is the ordering key within a conversation: Ts is server-assigned
// and non-decreasing, Seq breaks ties under coarse clocks.
type Message struct {
	ID             string      `bson:"_id" json:"id"`
	ConversationID string      `bson:"conversation_id" json:"conversation_id"`
	SenderID       string      `bson:"sender_id" json:"sender_id"`
	Ts             int64       `bson:"ts" json:"ts"` // unix ms
	Seq            int64       `bson:"seq" json:"seq"`
	Text           string      `bson:"text,omitempty" json:"text,omitempty"`
	Attachment     *Attachment `bson:"attachment,omitempty" json:"attachment,omitempty"`
	ReadBy         []string    `bson:"read_by" json:"read_by"`
}

func (*Message) TableName() string { return MessageTableName }
