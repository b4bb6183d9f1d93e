package repo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"kortstore/internal/domain"
)

// accountsCollection is the legacy collection name; the desktop client and
// the previous backend both read it, so it cannot change.
const accountsCollection = "KORTEX5_USERS"

// AccountRepositoryMongo implements domain.AccountRepository backed by MongoDB.
type AccountRepositoryMongo struct {
	collection *mongo.Collection
}

// NewAccountRepository creates a new AccountRepositoryMongo.
func NewAccountRepository(db *mongo.Database) *AccountRepositoryMongo {
	return &AccountRepositoryMongo{collection: db.Collection(accountsCollection)}
}

// Create inserts a new account after checking that neither the email nor the
// username is taken.
func (r *AccountRepositoryMongo) Create(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"email": account.Email},
		bson.M{"username": account.Username},
	}}
	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("check existing account: %w", err)
	}
	if count > 0 {
		return nil, domain.ErrDuplicateIdentity
	}

	res, err := r.collection.InsertOne(ctx, account)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrDuplicateIdentity
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		account.ID = oid.Hex()
	}
	return account, nil
}

// FindByEmail fetches an account by email.
func (r *AccountRepositoryMongo) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// FindByUsername fetches an account by username.
func (r *AccountRepositoryMongo) FindByUsername(ctx context.Context, username string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

// FindByID fetches an account by its hex ObjectID.
func (r *AccountRepositoryMongo) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *AccountRepositoryMongo) findOne(ctx context.Context, filter bson.M) (*domain.Account, error) {
	var doc accountDoc
	if err := r.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return doc.toDomain(), nil
}

// UpdatePassword replaces the stored password hash. Used to upgrade legacy
// plaintext records after a successful login.
func (r *AccountRepositoryMongo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.updateByID(ctx, id, bson.M{"password": passwordHash})
}

// UpdatePresence stores the resolved login location and the online status.
func (r *AccountRepositoryMongo) UpdatePresence(ctx context.Context, id, location, latitude, longitude, status string) error {
	return r.updateByID(ctx, id, bson.M{
		"location":  location,
		"latitude":  latitude,
		"longitude": longitude,
		"status":    status,
	})
}

func (r *AccountRepositoryMongo) updateByID(ctx context.Context, id string, fields bson.M) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrNotFound
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// WatchUpdates opens a change stream on the accounts collection and yields
// the hex ID of every updated or replaced document. The channel closes when
// the stream ends; callers reopen it.
func (r *AccountRepositoryMongo) WatchUpdates(ctx context.Context) (<-chan string, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"operationType": bson.M{"$in": bson.A{"update", "replace"}}}}},
	}
	stream, err := r.collection.Watch(ctx, pipeline, options.ChangeStream())
	if err != nil {
		return nil, fmt.Errorf("open change stream: %w", err)
	}

	ch := make(chan string)
	go func() {
		defer close(ch)
		defer func() { _ = stream.Close(context.Background()) }()
		for stream.Next(ctx) {
			var event struct {
				DocumentKey struct {
					ID primitive.ObjectID `bson:"_id"`
				} `bson:"documentKey"`
			}
			if err := stream.Decode(&event); err != nil {
				continue
			}
			select {
			case ch <- event.DocumentKey.ID.Hex():
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// accountDoc mirrors domain.Account with the ObjectID left in its native
// type so decoding does not depend on string _id values.
type accountDoc struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty"`
	Email        string              `bson:"email"`
	Username     string              `bson:"username"`
	PasswordHash string              `bson:"password"`
	LicenseKey   string              `bson:"key"`
	HardwareID   string              `bson:"hwid"`
	Location     string              `bson:"location"`
	Latitude     string              `bson:"latitude"`
	Longitude    string              `bson:"longitude"`
	AccountAdmin string              `bson:"account_admin"`
	KeyExpiry    *primitive.DateTime `bson:"key_expiry,omitempty"`
	Role         string              `bson:"cargo"`
	Status       string              `bson:"status"`
}

func (d accountDoc) toDomain() *domain.Account {
	acc := &domain.Account{
		ID:           d.ID.Hex(),
		Email:        d.Email,
		Username:     d.Username,
		PasswordHash: d.PasswordHash,
		LicenseKey:   d.LicenseKey,
		HardwareID:   d.HardwareID,
		Location:     d.Location,
		Latitude:     d.Latitude,
		Longitude:    d.Longitude,
		AccountAdmin: d.AccountAdmin,
		Role:         d.Role,
		Status:       d.Status,
	}
	if d.KeyExpiry != nil {
		t := d.KeyExpiry.Time()
		acc.KeyExpiry = &t
	}
	return acc
}
