package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"repairhub/internal/domain/entity"
	"repairhub/internal/domain/repository"
	"repairhub/pkg/errors"
	"repairhub/pkg/logger"
)

// maxAppendAttempts bounds the compare-and-swap loop of AppendMessage.
const maxAppendAttempts = 32

// mongoChatRepository stores each chat as one document with its messages
// embedded. Appends are compare-and-swap updates guarded by messageCount.
type mongoChatRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewMongoChatRepository(coll *mongo.Collection) repository.ChatRepository {
	return &mongoChatRepository{
		coll: coll,
		// BSON dates carry millisecond precision.
		now: func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

func (r *mongoChatRepository) Create(ctx context.Context, chat *entity.Chat) (*entity.Chat, bool, error) {
	prepareNewChat(chat, r.now())

	if _, err := r.coll.InsertOne(ctx, chat); err != nil {
		if !mongo.IsDuplicateKeyError(err) {
			return nil, false, storeError("failed to create chat", err)
		}

		var existing entity.Chat
		if err := r.coll.FindOne(ctx, bson.M{"pairKey": chat.PairKey}).Decode(&existing); err != nil {
			return nil, false, storeError("failed to load existing chat", err)
		}
		return &existing, false, nil
	}

	return chat.Clone(), true, nil
}

func (r *mongoChatRepository) GetByID(ctx context.Context, id string) (*entity.Chat, error) {
	var chat entity.Chat
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&chat)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.NotFound("chat", nil)
		}
		return nil, storeError("failed to get chat", err)
	}
	return &chat, nil
}

func (r *mongoChatRepository) GetMeta(ctx context.Context, id string) (*entity.Chat, error) {
	var chat entity.Chat
	opts := options.FindOne().SetProjection(bson.M{"messages": 0})
	err := r.coll.FindOne(ctx, bson.M{"_id": id}, opts).Decode(&chat)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.NotFound("chat", nil)
		}
		return nil, storeError("failed to get chat", err)
	}
	return &chat, nil
}

func (r *mongoChatRepository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.Chat, int64, error) {
	filter := bson.M{"participants": userID}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, storeError("failed to count chats", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "lastMessage", Value: -1}}).
		SetSkip(int64(offset)).
		SetProjection(bson.M{"messages": 0})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, storeError("failed to list chats", err)
	}
	defer cursor.Close(ctx)

	chats := []*entity.Chat{}
	if err := cursor.All(ctx, &chats); err != nil {
		return nil, 0, storeError("failed to decode chats", err)
	}

	return chats, total, nil
}

func (r *mongoChatRepository) AppendMessage(ctx context.Context, chatID string, msg *entity.Message) (*entity.Chat, error) {
	for attempt := 0; attempt < maxAppendAttempts; attempt++ {
		var current entity.Chat
		err := r.coll.FindOne(ctx, bson.M{"_id": chatID},
			options.FindOne().SetProjection(bson.M{"messages": bson.M{"$slice": -1}}),
		).Decode(&current)
		if err != nil {
			if err == mongo.ErrNoDocuments {
				return nil, errors.NotFound("chat", nil)
			}
			return nil, storeError("failed to load chat", err)
		}

		if !current.HasParticipant(msg.SenderID) {
			return nil, errors.Forbidden("not a participant", nil)
		}

		stampMessage(&current, msg, r.now())

		inc := bson.M{"messageCount": 1}
		for _, p := range current.OtherParticipants(msg.SenderID) {
			inc["unreadCounts."+p] = 1
		}
		update := bson.M{
			"$push": bson.M{"messages": msg},
			"$inc":  inc,
			"$set":  bson.M{"lastMessage": msg.Timestamp, "updatedAt": msg.Timestamp},
		}
		filter := bson.M{"_id": chatID, "messageCount": current.MessageCount}

		var updated entity.Chat
		err = r.coll.FindOneAndUpdate(ctx, filter, update,
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated)
		if err == mongo.ErrNoDocuments {
			// Another writer appended first. Re-read and retry.
			logger.Debug("append conflict on chat %s, attempt %d", chatID, attempt+1)
			continue
		}
		if err != nil {
			return nil, storeError("failed to append message", err)
		}

		return &updated, nil
	}

	return nil, errors.TransientStore("chat is busy, please retry", nil)
}

func (r *mongoChatRepository) ResetUnread(ctx context.Context, chatID, userID string) (*entity.Chat, error) {
	filter := bson.M{"_id": chatID, "participants": userID}
	update := bson.M{"$set": bson.M{"unreadCounts." + userID: 0}}

	var updated entity.Chat
	err := r.coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetProjection(bson.M{"messages": 0}),
	).Decode(&updated)
	if err == mongo.ErrNoDocuments {
		if _, err := r.GetByID(ctx, chatID); err != nil {
			return nil, err
		}
		return nil, errors.Forbidden("not a participant", nil)
	}
	if err != nil {
		return nil, storeError("failed to reset unread count", err)
	}

	return &updated, nil
}

func (r *mongoChatRepository) EditMessage(ctx context.Context, chatID, messageID, senderID, content string) (*entity.Message, error) {
	editedAt := r.now()
	filter := bson.M{
		"_id":      chatID,
		"messages": bson.M{"$elemMatch": bson.M{"id": messageID, "senderId": senderID}},
	}
	update := bson.M{"$set": bson.M{
		"messages.$.content":  content,
		"messages.$.edited":   true,
		"messages.$.editedAt": editedAt,
		"updatedAt":           editedAt,
	}}

	var updated entity.Chat
	err := r.coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetProjection(bson.M{"messages": bson.M{"$elemMatch": bson.M{"id": messageID}}}),
	).Decode(&updated)
	if err == mongo.ErrNoDocuments {
		return nil, r.explainMiss(ctx, chatID, messageID, senderID, "edit")
	}
	if err != nil {
		return nil, storeError("failed to edit message", err)
	}
	if len(updated.Messages) == 0 {
		return nil, errors.NotFound("message", nil)
	}

	edited := updated.Messages[0]
	return &edited, nil
}

func (r *mongoChatRepository) DeleteMessage(ctx context.Context, chatID, messageID, senderID string) error {
	filter := bson.M{
		"_id":      chatID,
		"messages": bson.M{"$elemMatch": bson.M{"id": messageID, "senderId": senderID}},
	}
	// The pipeline removes the message and recomputes lastMessage from what
	// remains in one atomic document update.
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"messages": bson.M{"$filter": bson.M{
				"input": "$messages",
				"cond":  bson.M{"$ne": bson.A{"$$this.id", messageID}},
			}},
		}}},
		{{Key: "$set", Value: bson.M{
			"lastMessage": bson.M{"$ifNull": bson.A{bson.M{"$last": "$messages.timestamp"}, "$lastMessage"}},
			"updatedAt":   r.now(),
		}}},
	}

	res, err := r.coll.UpdateOne(ctx, filter, pipeline)
	if err != nil {
		return storeError("failed to delete message", err)
	}
	if res.MatchedCount == 0 {
		return r.explainMiss(ctx, chatID, messageID, senderID, "delete")
	}

	return nil
}

// explainMiss turns a filtered update that matched nothing into the domain
// error describing why.
func (r *mongoChatRepository) explainMiss(ctx context.Context, chatID, messageID, senderID, verb string) error {
	chat, err := r.GetByID(ctx, chatID)
	if err != nil {
		return err
	}
	for _, m := range chat.Messages {
		if m.ID != messageID {
			continue
		}
		if m.SenderID != senderID {
			return errors.Forbidden("not authorized to "+verb+" this message", nil)
		}
		return errors.TransientStore("message changed concurrently, please retry", nil)
	}
	return errors.NotFound("message", nil)
}
