package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const (
	usersCollection         = "users"
	tokensCollection        = "tokens"
	refreshTokensCollection = "refresh_tokens"
	sessionsCollection      = "sessions"
	activitiesCollection    = "activities"
)

type userDoc struct {
	ID            bson.ObjectID `bson:"_id,omitempty"`
	Email         string        `bson:"email"`
	Name          string        `bson:"name"`
	PasswordHash  string        `bson:"passwordHash,omitempty"`
	Role          Role          `bson:"role"`
	EmailVerified *time.Time    `bson:"emailVerified,omitempty"`
	Onboarded     bool          `bson:"onboarded"`
	Banned        bool          `bson:"banned"`
	LastSeen      *time.Time    `bson:"lastSeen,omitempty"`
	CreatedAt     time.Time     `bson:"createdAt"`
	UpdatedAt     time.Time     `bson:"updatedAt"`
}

func (d *userDoc) toUser() *User {
	return &User{
		ID:            d.ID.Hex(),
		Email:         d.Email,
		Name:          d.Name,
		PasswordHash:  d.PasswordHash,
		Role:          d.Role,
		EmailVerified: d.EmailVerified,
		Onboarded:     d.Onboarded,
		Banned:        d.Banned,
		LastSeen:      d.LastSeen,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

type tokenDoc struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	UserID    bson.ObjectID `bson:"userId"`
	Value     string        `bson:"token"`
	Type      TokenType     `bson:"type"`
	ExpiresAt time.Time     `bson:"expiresAt"`
	CreatedAt time.Time     `bson:"createdAt"`
}

func (d *tokenDoc) toToken() *Token {
	return &Token{
		ID:        d.ID.Hex(),
		UserID:    d.UserID.Hex(),
		Value:     d.Value,
		Type:      d.Type,
		ExpiresAt: d.ExpiresAt,
		CreatedAt: d.CreatedAt,
	}
}

type refreshTokenDoc struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	UserID    bson.ObjectID `bson:"userId"`
	SessionID string        `bson:"sessionId"`
	Value     string        `bson:"token"`
	CreatedAt time.Time     `bson:"createdAt"`
	ExpiresAt time.Time     `bson:"expiresAt"`
}

type sessionDoc struct {
	ID           bson.ObjectID `bson:"_id,omitempty"`
	UserID       bson.ObjectID `bson:"userId"`
	SessionID    string        `bson:"sessionId"`
	LastActivity time.Time     `bson:"lastActivity"`
	CreatedAt    time.Time     `bson:"createdAt"`
}

type activityDoc struct {
	ID        bson.ObjectID     `bson:"_id,omitempty"`
	UserID    bson.ObjectID     `bson:"userId"`
	Action    string            `bson:"action"`
	Details   map[string]string `bson:"details,omitempty"`
	CreatedAt time.Time         `bson:"createdAt"`
}

// MongoStore implements [Store] on MongoDB.
type MongoStore struct {
	client        *mongo.Client
	users         *mongo.Collection
	tokens        *mongo.Collection
	refreshTokens *mongo.Collection
	sessions      *mongo.Collection
	activities    *mongo.Collection
	logger        zerolog.Logger
}

var _ Store = (*MongoStore)(nil)

// Connect dials uri, pings the primary and returns the client.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// NewMongoStore binds the collections of db and creates the indexes the store relies
// on: unique email and token values, unique session ids, and TTL indexes that let the
// server expire tokens and refresh tokens on its own.
func NewMongoStore(ctx context.Context, db *mongo.Database, logger zerolog.Logger) (*MongoStore, error) {
	s := &MongoStore{
		client:        db.Client(),
		users:         db.Collection(usersCollection),
		tokens:        db.Collection(tokensCollection),
		refreshTokens: db.Collection(refreshTokensCollection),
		sessions:      db.Collection(sessionsCollection),
		activities:    db.Collection(activitiesCollection),
		logger:        logger.With().Str("component", "store.mongo").Logger(),
	}

	indexes := map[*mongo.Collection][]mongo.IndexModel{
		s.users: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		},
		s.tokens: {
			{Keys: bson.D{{Key: "token", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "type", Value: 1}}},
			{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		},
		s.refreshTokens: {
			{Keys: bson.D{{Key: "token", Value: 1}, {Key: "sessionId", Value: 1}}},
			{Keys: bson.D{{Key: "userId", Value: 1}}},
			{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		},
		s.sessions: {
			{Keys: bson.D{{Key: "sessionId", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "userId", Value: 1}}},
			{Keys: bson.D{{Key: "lastActivity", Value: -1}}},
		},
		s.activities: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
	}
	for coll, models := range indexes {
		if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
			return nil, fmt.Errorf("create %s indexes: %w", coll.Name(), err)
		}
	}

	return s, nil
}

func now() time.Time {
	return time.Now().UTC()
}

// objectID parses a hex id. Malformed ids cannot match any record.
func objectID(id string) (bson.ObjectID, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return bson.NilObjectID, ErrNotFound
	}
	return oid, nil
}

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicate
	default:
		return err
	}
}

var withoutPassword = bson.M{"passwordHash": 0}

func (s *MongoStore) findUser(ctx context.Context, filter bson.M, includePassword bool) (*User, error) {
	opts := options.FindOne()
	if !includePassword {
		opts.SetProjection(withoutPassword)
	}

	var doc userDoc
	if err := s.users.FindOne(ctx, filter, opts).Decode(&doc); err != nil {
		return nil, mapErr(err)
	}
	return doc.toUser(), nil
}

func (s *MongoStore) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.findUser(ctx, bson.M{"email": email}, false)
}

func (s *MongoStore) FindUserByEmailWithPassword(ctx context.Context, email string) (*User, error) {
	return s.findUser(ctx, bson.M{"email": email}, true)
}

func (s *MongoStore) FindUserByID(ctx context.Context, id string) (*User, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return s.findUser(ctx, bson.M{"_id": oid}, false)
}

func (s *MongoStore) CreateUser(ctx context.Context, u *User) error {
	ts := now()
	if u.Role == "" {
		u.Role = RoleUser
	}

	doc := userDoc{
		Email:         u.Email,
		Name:          u.Name,
		PasswordHash:  u.PasswordHash,
		Role:          u.Role,
		EmailVerified: u.EmailVerified,
		Onboarded:     u.Onboarded,
		Banned:        u.Banned,
		LastSeen:      u.LastSeen,
		CreatedAt:     ts,
		UpdatedAt:     ts,
	}

	result, err := s.users.InsertOne(ctx, doc)
	if err != nil {
		return mapErr(err)
	}

	oid, ok := result.InsertedID.(bson.ObjectID)
	if !ok {
		return errors.New("failed to convert inserted ID to ObjectID")
	}
	u.ID = oid.Hex()
	u.CreatedAt = ts
	u.UpdatedAt = ts
	return nil
}

func (s *MongoStore) UpdateUser(ctx context.Context, id string, patch UserPatch) (*User, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	set := bson.M{"updatedAt": now()}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.PasswordHash != nil {
		set["passwordHash"] = *patch.PasswordHash
	}
	if patch.Role != nil {
		set["role"] = *patch.Role
	}
	if patch.EmailVerified != nil {
		set["emailVerified"] = *patch.EmailVerified
	}
	if patch.Onboarded != nil {
		set["onboarded"] = *patch.Onboarded
	}
	if patch.Banned != nil {
		set["banned"] = *patch.Banned
	}
	if patch.LastSeen != nil {
		set["lastSeen"] = *patch.LastSeen
	}

	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(withoutPassword)

	var doc userDoc
	if err := s.users.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&doc); err != nil {
		return nil, mapErr(err)
	}
	return doc.toUser(), nil
}

func (s *MongoStore) listUsers(ctx context.Context, filter bson.M, limit int) ([]User, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetProjection(withoutPassword)
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.users.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	var docs []userDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]User, 0, len(docs))
	for i := range docs {
		out = append(out, *docs[i].toUser())
	}
	return out, nil
}

func (s *MongoStore) ListUsers(ctx context.Context) ([]User, error) {
	return s.listUsers(ctx, bson.M{}, 0)
}

func (s *MongoStore) SearchUsers(ctx context.Context, query string, limit int) ([]User, error) {
	pattern := bson.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
	filter := bson.M{"$or": bson.A{
		bson.M{"name": pattern},
		bson.M{"email": pattern},
	}}
	return s.listUsers(ctx, filter, limit)
}

func (s *MongoStore) CreateToken(ctx context.Context, userID string, typ TokenType, value string, ttl time.Duration) (*Token, error) {
	uid, err := objectID(userID)
	if err != nil {
		return nil, err
	}

	ts := now()
	doc := tokenDoc{
		UserID:    uid,
		Value:     value,
		Type:      typ,
		ExpiresAt: ts.Add(ttl),
		CreatedAt: ts,
	}
	result, err := s.tokens.InsertOne(ctx, doc)
	if err != nil {
		return nil, mapErr(err)
	}
	if oid, ok := result.InsertedID.(bson.ObjectID); ok {
		doc.ID = oid
	}
	return doc.toToken(), nil
}

func (s *MongoStore) consume(ctx context.Context, filter bson.M) (*Token, error) {
	var doc tokenDoc
	if err := s.tokens.FindOneAndDelete(ctx, filter).Decode(&doc); err != nil {
		return nil, mapErr(err)
	}
	// The TTL monitor runs about once a minute, so an expired document may still be
	// present. It is deleted above and reported as expired here.
	t := doc.toToken()
	if t.Expired(now()) {
		return nil, ErrExpired
	}
	return t, nil
}

func (s *MongoStore) ConsumeToken(ctx context.Context, value string, typ TokenType) (*Token, error) {
	return s.consume(ctx, bson.M{"token": value, "type": typ})
}

func (s *MongoStore) ConsumeTokenByID(ctx context.Context, id string) (*Token, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return s.consume(ctx, bson.M{"_id": oid})
}

func (s *MongoStore) FindToken(ctx context.Context, userID string, typ TokenType) (*Token, error) {
	uid, err := objectID(userID)
	if err != nil {
		return nil, err
	}

	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	var doc tokenDoc
	if err := s.tokens.FindOne(ctx, bson.M{"userId": uid, "type": typ}, opts).Decode(&doc); err != nil {
		return nil, mapErr(err)
	}
	return doc.toToken(), nil
}

func (s *MongoStore) DeleteTokensForUser(ctx context.Context, userID string, types ...TokenType) error {
	uid, err := objectID(userID)
	if err != nil {
		return err
	}

	filter := bson.M{"userId": uid}
	if len(types) > 0 {
		filter["type"] = bson.M{"$in": types}
	}
	_, err = s.tokens.DeleteMany(ctx, filter)
	return err
}

func (s *MongoStore) CreateRefreshToken(ctx context.Context, userID, sessionID, value string, ttl time.Duration) error {
	uid, err := objectID(userID)
	if err != nil {
		return err
	}

	ts := now()
	_, err = s.refreshTokens.InsertOne(ctx, refreshTokenDoc{
		UserID:    uid,
		SessionID: sessionID,
		Value:     value,
		CreatedAt: ts,
		ExpiresAt: ts.Add(ttl),
	})
	return mapErr(err)
}

func liveRefreshFilter(value, sessionID string) bson.M {
	return bson.M{
		"token":     value,
		"sessionId": sessionID,
		"expiresAt": bson.M{"$gt": now()},
	}
}

func (d *refreshTokenDoc) toRefreshToken() *RefreshToken {
	return &RefreshToken{
		ID:        d.ID.Hex(),
		UserID:    d.UserID.Hex(),
		SessionID: d.SessionID,
		Value:     d.Value,
		CreatedAt: d.CreatedAt,
		ExpiresAt: d.ExpiresAt,
	}
}

func (s *MongoStore) FindRefreshToken(ctx context.Context, value, sessionID string) (*RefreshToken, error) {
	var doc refreshTokenDoc
	if err := s.refreshTokens.FindOne(ctx, liveRefreshFilter(value, sessionID)).Decode(&doc); err != nil {
		return nil, mapErr(err)
	}
	return doc.toRefreshToken(), nil
}

func (s *MongoStore) DeleteRefreshToken(ctx context.Context, value, sessionID string) (*RefreshToken, error) {
	var doc refreshTokenDoc
	if err := s.refreshTokens.FindOneAndDelete(ctx, liveRefreshFilter(value, sessionID)).Decode(&doc); err != nil {
		return nil, mapErr(err)
	}
	return doc.toRefreshToken(), nil
}

func (s *MongoStore) CreateSession(ctx context.Context, userID, sessionID string) error {
	uid, err := objectID(userID)
	if err != nil {
		return err
	}

	ts := now()
	_, err = s.sessions.InsertOne(ctx, sessionDoc{
		UserID:       uid,
		SessionID:    sessionID,
		LastActivity: ts,
		CreatedAt:    ts,
	})
	return mapErr(err)
}

func (s *MongoStore) TouchSession(ctx context.Context, sessionID string) error {
	// $max keeps lastActivity monotonic under concurrent touches.
	_, err := s.sessions.UpdateOne(ctx,
		bson.M{"sessionId": sessionID},
		bson.M{"$max": bson.M{"lastActivity": now()}},
	)
	return err
}

func (s *MongoStore) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := s.sessions.DeleteOne(ctx, bson.M{"sessionId": sessionID})
	return err
}

func (s *MongoStore) findSessions(ctx context.Context, filter bson.M) ([]Session, error) {
	cursor, err := s.sessions.Find(ctx, filter)
	if err != nil {
		return nil, err
	}

	var docs []sessionDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]Session, 0, len(docs))
	for _, d := range docs {
		out = append(out, Session{
			ID:           d.ID.Hex(),
			UserID:       d.UserID.Hex(),
			SessionID:    d.SessionID,
			LastActivity: d.LastActivity,
			CreatedAt:    d.CreatedAt,
		})
	}
	return out, nil
}

func (s *MongoStore) ListRecentSessions(ctx context.Context, since time.Time) ([]Session, error) {
	return s.findSessions(ctx, bson.M{"lastActivity": bson.M{"$gte": since}})
}

func (s *MongoStore) ListUserSessions(ctx context.Context, userID string) ([]Session, error) {
	uid, err := objectID(userID)
	if err != nil {
		return nil, err
	}
	return s.findSessions(ctx, bson.M{"userId": uid})
}

func (s *MongoStore) CreateActivity(ctx context.Context, a *Activity) error {
	uid, err := objectID(a.UserID)
	if err != nil {
		return err
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now()
	}

	result, err := s.activities.InsertOne(ctx, activityDoc{
		UserID:    uid,
		Action:    a.Action,
		Details:   a.Details,
		CreatedAt: a.CreatedAt,
	})
	if err != nil {
		return err
	}
	if oid, ok := result.InsertedID.(bson.ObjectID); ok {
		a.ID = oid.Hex()
	}
	return nil
}

func (s *MongoStore) ListActivity(ctx context.Context, userID string, limit int) ([]Activity, error) {
	uid, err := objectID(userID)
	if err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.activities.Find(ctx, bson.M{"userId": uid}, opts)
	if err != nil {
		return nil, err
	}

	var docs []activityDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]Activity, 0, len(docs))
	for _, d := range docs {
		out = append(out, Activity{
			ID:        d.ID.Hex(),
			UserID:    d.UserID.Hex(),
			Action:    d.Action,
			Details:   d.Details,
			CreatedAt: d.CreatedAt,
		})
	}
	return out, nil
}

// DeleteUserCascade issues two independent DeleteMany calls. A failure between them
// leaves sessions that no refresh token can extend; rerunning completes the revoke.
func (s *MongoStore) DeleteUserCascade(ctx context.Context, userID string) error {
	uid, err := objectID(userID)
	if err != nil {
		return err
	}

	rt, err := s.refreshTokens.DeleteMany(ctx, bson.M{"userId": uid})
	if err != nil {
		return fmt.Errorf("delete refresh tokens: %w", err)
	}
	ss, err := s.sessions.DeleteMany(ctx, bson.M{"userId": uid})
	if err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}

	s.logger.Debug().
		Str("user_id", userID).
		Int64("refresh_tokens", rt.DeletedCount).
		Int64("sessions", ss.DeletedCount).
		Msg("revoked user credentials")
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}
