package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// Mongo collection names.
const (
	ticketsCollection  = "tickets"
	usersCollection    = "users"
	countersCollection = "counters"
)

// EnsureMongoIndexes creates the unique and lookup indexes the repositories rely on.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(ticketsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "ticketNumber", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "createdBy", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "assignedTo", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("ticket indexes: %w", err)
	}
	_, err = db.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("user indexes: %w", err)
	}
	return nil
}

type mongoTicketRepository struct {
	coll *mongo.Collection
}

// NewMongoTicketRepository stores tickets as documents with embedded history.
func NewMongoTicketRepository(db *mongo.Database) TicketRepository {
	return &mongoTicketRepository{coll: db.Collection(ticketsCollection)}
}

func (r *mongoTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	_, err := r.coll.InsertOne(ctx, ticket)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

func (r *mongoTicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&ticket); err != nil {
		return nil, mapMongoErr(err)
	}
	return &ticket, nil
}

func (r *mongoTicketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	query := bson.M{}
	if filter.CreatedBy != nil {
		query["createdBy"] = *filter.CreatedBy
	}
	if filter.AssignedTo != nil {
		query["assignedTo"] = *filter.AssignedTo
	}
	if len(filter.Statuses) > 0 {
		query["status"] = bson.M{"$in": filter.Statuses}
	}
	if len(filter.Priorities) > 0 {
		query["priority"] = bson.M{"$in": filter.Priorities}
	}
	if len(filter.Types) > 0 {
		query["type"] = bson.M{"$in": filter.Types}
	}
	if filter.CreatedFrom != nil || filter.CreatedTo != nil {
		createdAt := bson.M{}
		if filter.CreatedFrom != nil {
			createdAt["$gte"] = *filter.CreatedFrom
		}
		if filter.CreatedTo != nil {
			createdAt["$lte"] = *filter.CreatedTo
		}
		query["createdAt"] = createdAt
	}
	if filter.NumberBelow != nil {
		query["ticketNumber"] = bson.M{"$lt": *filter.NumberBelow}
	}

	sort := bson.D{{Key: "createdAt", Value: -1}, {Key: "ticketNumber", Value: -1}}
	if filter.Order == OrderNumberDesc {
		sort = bson.D{{Key: "ticketNumber", Value: -1}}
	}
	opts := options.Find().SetSort(sort)
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
		if filter.Offset > 0 {
			opts.SetSkip(int64(filter.Offset))
		}
	}

	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	var result []domain.Ticket
	if err := cursor.All(ctx, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *mongoTicketRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoTicketRepository) ApplyStatusChange(ctx context.Context, id string, change domain.StatusChange) (*domain.Ticket, error) {
	at := clampedAtExpr(change.At)
	set := bson.D{
		{Key: "status", Value: change.Status},
		{Key: "statusHistory", Value: appendHistory(change.Entry, at)},
		{Key: "updatedAt", Value: at},
	}
	if change.SetsResolvedAt() {
		if change.Resolution != nil {
			set = append(set, bson.E{Key: "resolution", Value: bson.M{"$literal": *change.Resolution}})
		}
		set = append(set, bson.E{Key: "resolvedAt", Value: ifNull("$resolvedAt", at)})
	}
	if change.SetsInProgressAt() {
		set = append(set, bson.E{Key: "inProgressAt", Value: ifNull("$inProgressAt", at)})
	}
	return r.update(ctx, id, set)
}

func (r *mongoTicketRepository) ApplyAssignment(ctx context.Context, id string, assignment domain.Assignment) (*domain.Ticket, error) {
	at := clampedAtExpr(assignment.At)
	set := bson.D{
		{Key: "assignedTo", Value: bson.M{"$literal": assignment.TechnicianID}},
		{Key: "status", Value: domain.TicketStatusInProgress},
		{Key: "assignedAt", Value: ifNull("$assignedAt", at)},
		{Key: "inProgressAt", Value: ifNull("$inProgressAt", at)},
		{Key: "statusHistory", Value: appendHistory(assignment.Entry, at)},
		{Key: "updatedAt", Value: at},
	}
	return r.update(ctx, id, set)
}

func (r *mongoTicketRepository) FillMilestones(ctx context.Context, id string, milestones domain.Milestones) (*domain.Ticket, error) {
	set := bson.D{}
	if milestones.AssignedAt != nil {
		set = append(set, bson.E{Key: "assignedAt", Value: ifNull("$assignedAt", *milestones.AssignedAt)})
	}
	if milestones.InProgressAt != nil {
		set = append(set, bson.E{Key: "inProgressAt", Value: ifNull("$inProgressAt", *milestones.InProgressAt)})
	}
	if milestones.ResolvedAt != nil {
		set = append(set, bson.E{Key: "resolvedAt", Value: ifNull("$resolvedAt", *milestones.ResolvedAt)})
	}
	if len(set) == 0 {
		return r.GetByID(ctx, id)
	}
	return r.update(ctx, id, set)
}

// update runs a single findOneAndUpdate with an aggregation pipeline so conditional
// writes are evaluated against the stored document, not a prior read.
func (r *mongoTicketRepository) update(ctx context.Context, id string, set bson.D) (*domain.Ticket, error) {
	pipeline := mongo.Pipeline{{{Key: "$set", Value: set}}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var ticket domain.Ticket
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, pipeline, opts).Decode(&ticket); err != nil {
		return nil, mapMongoErr(err)
	}
	return &ticket, nil
}

// appendHistory appends entry with its changedAt replaced by the at expression.
func appendHistory(entry domain.HistoryEntry, at bson.M) bson.M {
	return bson.M{"$concatArrays": bson.A{
		ifNull("$statusHistory", bson.A{}),
		bson.A{bson.M{"$mergeObjects": bson.A{
			bson.M{"$literal": entry},
			bson.M{"changedAt": at},
		}}},
	}}
}

// clampedAtExpr never lets a write go behind the newest stored history entry.
func clampedAtExpr(at time.Time) bson.M {
	return bson.M{"$max": bson.A{at, ifNull(bson.M{"$last": "$statusHistory.changedAt"}, at)}}
}

func ifNull(expr any, fallback any) bson.M {
	return bson.M{"$ifNull": bson.A{expr, fallback}}
}

type counterDocument struct {
	Name string `bson:"_id"`
	Seq  int64  `bson:"seq"`
}

type mongoCounterRepository struct {
	coll *mongo.Collection
}

// NewMongoCounterRepository returns a Sequencer using an upserting $inc.
func NewMongoCounterRepository(db *mongo.Database) Sequencer {
	return &mongoCounterRepository{coll: db.Collection(countersCollection)}
}

func (r *mongoCounterRepository) NextValue(ctx context.Context, name string) (int64, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var doc counterDocument
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": name}, bson.M{"$inc": bson.M{"seq": 1}}, opts).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("next value for %s: %w", name, err)
	}
	return doc.Seq, nil
}

type mongoUserRepository struct {
	coll *mongo.Collection
}

// NewMongoUserRepository stores accounts in the users collection.
func NewMongoUserRepository(db *mongo.Database) UserRepository {
	return &mongoUserRepository{coll: db.Collection(usersCollection)}
}

func (r *mongoUserRepository) Create(ctx context.Context, user *domain.User) error {
	_, err := r.coll.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

func (r *mongoUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *mongoUserRepository) ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"role": role}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var result []domain.User
	if err := cursor.All(ctx, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *mongoUserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var user domain.User
	if err := r.coll.FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, mapMongoErr(err)
	}
	return &user, nil
}

func mapMongoErr(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}
