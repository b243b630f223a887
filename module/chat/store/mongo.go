package store

import (
	"context"
	"time"

	"RentChat/module/chat/model"
	"RentChat/tools/errs"
	"RentChat/tools/ids"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoStore struct {
	ConvColl *mongo.Collection
	MsgColl  *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	conv := model.Conversation{}
	msg := model.Message{}
	return &MongoStore{
		ConvColl: db.Collection(conv.TableName()),
		MsgColl:  db.Collection(msg.TableName()),
	}
}

// EnsureIndexes creates the pair-unique conversation index and the compound
// ordering index on messages. Call once at startup.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.ConvColl.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: model.ConversationFieldPairKey, Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return errors.Wrap(err, "conversation pair index")
	}
	_, err = s.MsgColl.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: model.MessageFieldConversationID, Value: 1},
			{Key: model.MessageFieldTs, Value: 1},
			{Key: model.MessageFieldSeq, Value: 1},
		},
	})
	return errors.Wrap(err, "message ordering index")
}

func (s *MongoStore) GetOrCreate(ctx context.Context, userA, userB string) (*model.Conversation, error) {
	if userA == "" || userB == "" || userA == userB {
		return nil, errs.ErrValidation.WithDetail("conversation needs two distinct participants")
	}
	pair := model.PairKeyOf(userA, userB)
	now := time.Now()

	res := s.ConvColl.FindOneAndUpdate(ctx,
		bson.M{model.ConversationFieldPairKey: pair},
		bson.M{
			"$setOnInsert": bson.M{
				model.ConversationFieldID:           ids.GenerateString(),
				model.ConversationFieldPairKey:      pair,
				model.ConversationFieldParticipants: []string{userA, userB},
				model.ConversationFieldUnread:       map[string]int64{userA: 0, userB: 0},
				model.ConversationFieldCreateTime:   now,
				model.ConversationFieldLastActivity: now,
			},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	)

	var out model.Conversation
	if err := res.Decode(&out); err != nil {
		return nil, errors.Wrap(err, "get-or-create conversation")
	}
	return &out, nil
}

func (s *MongoStore) Get(ctx context.Context, convID string) (*model.Conversation, error) {
	var out model.Conversation
	err := s.ConvColl.FindOne(ctx, bson.M{model.ConversationFieldID: convID}).Decode(&out)
	if err == mongo.ErrNoDocuments {
		return nil, errs.ErrNotFound.WithDetail("conversation " + convID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get conversation")
	}
	return &out, nil
}

func (s *MongoStore) ListByUser(ctx context.Context, userID string) ([]*model.Conversation, error) {
	cur, err := s.ConvColl.Find(ctx,
		bson.M{model.ConversationFieldParticipants: userID},
		options.Find().SetSort(bson.M{model.ConversationFieldLastActivity: -1}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "list conversations")
	}
	defer func() { _ = cur.Close(ctx) }()

	var out []*model.Conversation
	for cur.Next(ctx) {
		var c model.Conversation
		if err := cur.Decode(&c); err != nil {
			return nil, errors.Wrap(err, "decode conversation")
		}
		out = append(out, &c)
	}
	return out, cur.Err()
}

func (s *MongoStore) AppendMessage(ctx context.Context, msg *model.Message, unreadFor string) error {
	if _, err := s.MsgColl.InsertOne(ctx, msg); err != nil {
		return errors.Wrap(err, "insert message")
	}

	_, err := s.ConvColl.UpdateOne(ctx,
		bson.M{model.ConversationFieldID: msg.ConversationID},
		bson.M{
			"$inc": bson.M{model.ConversationFieldUnread + "." + unreadFor: 1},
			"$set": bson.M{model.ConversationFieldLastActivity: time.UnixMilli(msg.Ts)},
		},
	)
	if err != nil {
		// keep the append all-or-nothing: take the orphan message back out
		_, _ = s.MsgColl.DeleteOne(ctx, bson.M{model.MessageFieldID: msg.ID})
		return errors.Wrap(err, "bump conversation")
	}
	return nil
}

func (s *MongoStore) LastOrdering(ctx context.Context, convID string) (int64, int64, error) {
	cur, err := s.MsgColl.Find(ctx,
		bson.M{model.MessageFieldConversationID: convID},
		options.Find().
			SetSort(bson.D{{Key: model.MessageFieldTs, Value: -1}, {Key: model.MessageFieldSeq, Value: -1}}).
			SetLimit(1),
	)
	if err != nil {
		return 0, 0, errors.Wrap(err, "last ordering")
	}
	defer func() { _ = cur.Close(ctx) }()
	if cur.Next(ctx) {
		var m model.Message
		if err := cur.Decode(&m); err != nil {
			return 0, 0, errors.Wrap(err, "decode message")
		}
		return m.Ts, m.Seq, nil
	}
	return 0, 0, cur.Err()
}

func (s *MongoStore) History(ctx context.Context, convID string, beforeTs, beforeSeq int64, limit int64) ([]*model.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	filter := bson.M{model.MessageFieldConversationID: convID}
	if beforeTs > 0 {
		// composite cursor: strictly before (ts, seq), so a page boundary
		// inside a shared-ts run does not drop the rest of the run
		filter["$or"] = bson.A{
			bson.M{model.MessageFieldTs: bson.M{"$lt": beforeTs}},
			bson.M{
				model.MessageFieldTs:  beforeTs,
				model.MessageFieldSeq: bson.M{"$lt": beforeSeq},
			},
		}
	}
	cur, err := s.MsgColl.Find(ctx, filter,
		options.Find().
			SetSort(bson.D{{Key: model.MessageFieldTs, Value: -1}, {Key: model.MessageFieldSeq, Value: -1}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, errors.Wrap(err, "history")
	}
	defer func() { _ = cur.Close(ctx) }()

	var out []*model.Message
	for cur.Next(ctx) {
		var m model.Message
		if err := cur.Decode(&m); err != nil {
			return nil, errors.Wrap(err, "decode message")
		}
		out = append(out, &m)
	}
	return out, cur.Err()
}

func (s *MongoStore) MarkRead(ctx context.Context, convID, reader string) error {
	_, err := s.ConvColl.UpdateOne(ctx,
		bson.M{model.ConversationFieldID: convID},
		bson.M{"$set": bson.M{model.ConversationFieldUnread + "." + reader: 0}},
	)
	if err != nil {
		return errors.Wrap(err, "reset unread")
	}

	// bulk: every message from the other party not yet acknowledged
	_, err = s.MsgColl.UpdateMany(ctx,
		bson.M{
			model.MessageFieldConversationID: convID,
			model.MessageFieldSenderID:       bson.M{"$ne": reader},
			model.MessageFieldReadBy:         bson.M{"$ne": reader},
		},
		bson.M{"$addToSet": bson.M{model.MessageFieldReadBy: reader}},
	)
	return errors.Wrap(err, "mark messages read")
}
