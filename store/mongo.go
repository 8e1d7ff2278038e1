package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/GoCodeAlone/taskboard/entity"
	"github.com/GoCodeAlone/taskboard/task"
)

// MongoStore persists all entities in MongoDB collections named after
// entity.Collection. References are stored as ObjectIDs.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

type teamDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Name        string             `bson:"name"`
	Description string             `bson:"description"`
	CreatedAt   time.Time          `bson:"created_at"`
}

type projectDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Name        string             `bson:"name"`
	Description string             `bson:"description"`
	CreatedAt   time.Time          `bson:"created_at"`
}

type tagDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Name      string             `bson:"name"`
	CreatedAt time.Time          `bson:"created_at"`
}

type userDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Name      string             `bson:"name"`
	Email     string             `bson:"email"`
	Password  string             `bson:"password,omitempty"`
	CreatedAt time.Time          `bson:"created_at"`
}

type taskDoc struct {
	ID             primitive.ObjectID   `bson:"_id,omitempty"`
	Name           string               `bson:"name"`
	Project        primitive.ObjectID   `bson:"project"`
	Team           primitive.ObjectID   `bson:"team"`
	Owners         []primitive.ObjectID `bson:"owners"`
	Tags           []primitive.ObjectID `bson:"tags"`
	TimeToComplete float64              `bson:"timeToComplete"`
	Status         string               `bson:"status"`
	CreatedAt      time.Time            `bson:"createdAt"`
	UpdatedAt      time.Time            `bson:"updatedAt"`
}

// lookupDoc decodes the projection used by Lookup for every collection.
type lookupDoc struct {
	ID          primitive.ObjectID `bson:"_id"`
	Name        string             `bson:"name"`
	Description string             `bson:"description"`
	Email       string             `bson:"email"`
}

// NewMongoStore connects to uri, pings the server and ensures the unique
// indexes on users.email and teams.name exist.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := &MongoStore{client: client, db: client.Database(database)}
	for coll, field := range map[entity.Collection]string{entity.Users: "email", entity.Teams: "name"} {
		_, err := s.coll(coll).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: field, Value: 1}},
			Options: options.Index().SetUnique(true),
		})
		if err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("create %s.%s index: %w", coll, field, err)
		}
	}
	return s, nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) coll(c entity.Collection) *mongo.Collection {
	return s.db.Collection(string(c))
}

// --- teams, projects, tags ---

func (s *MongoStore) CreateTeam(ctx context.Context, t *entity.Team) error {
	doc := teamDoc{Name: t.Name, Description: t.Description, CreatedAt: time.Now().UTC()}
	id, err := s.insert(ctx, entity.Teams, doc)
	if err != nil {
		return entity.Fault("insert team", err)
	}
	t.ID, t.CreatedAt = id, doc.CreatedAt
	return nil
}

func (s *MongoStore) ListTeams(ctx context.Context) ([]*entity.Team, error) {
	var docs []teamDoc
	if err := s.findAll(ctx, entity.Teams, bson.M{}, &docs); err != nil {
		return nil, entity.Fault("list teams", err)
	}
	teams := make([]*entity.Team, 0, len(docs))
	for _, d := range docs {
		teams = append(teams, &entity.Team{ID: d.ID.Hex(), Name: d.Name, Description: d.Description, CreatedAt: d.CreatedAt})
	}
	return teams, nil
}

func (s *MongoStore) DeleteTeam(ctx context.Context, id string) (bool, error) {
	return s.deleteByID(ctx, entity.Teams, id)
}

func (s *MongoStore) CreateProject(ctx context.Context, p *entity.Project) error {
	doc := projectDoc{Name: p.Name, Description: p.Description, CreatedAt: time.Now().UTC()}
	id, err := s.insert(ctx, entity.Projects, doc)
	if err != nil {
		return entity.Fault("insert project", err)
	}
	p.ID, p.CreatedAt = id, doc.CreatedAt
	return nil
}

func (s *MongoStore) ListProjects(ctx context.Context) ([]*entity.Project, error) {
	var docs []projectDoc
	if err := s.findAll(ctx, entity.Projects, bson.M{}, &docs); err != nil {
		return nil, entity.Fault("list projects", err)
	}
	projects := make([]*entity.Project, 0, len(docs))
	for _, d := range docs {
		projects = append(projects, &entity.Project{ID: d.ID.Hex(), Name: d.Name, Description: d.Description, CreatedAt: d.CreatedAt})
	}
	return projects, nil
}

func (s *MongoStore) DeleteProject(ctx context.Context, id string) (bool, error) {
	return s.deleteByID(ctx, entity.Projects, id)
}

func (s *MongoStore) CreateTag(ctx context.Context, t *entity.Tag) error {
	doc := tagDoc{Name: t.Name, CreatedAt: time.Now().UTC()}
	id, err := s.insert(ctx, entity.Tags, doc)
	if err != nil {
		return entity.Fault("insert tag", err)
	}
	t.ID, t.CreatedAt = id, doc.CreatedAt
	return nil
}

func (s *MongoStore) ListTags(ctx context.Context) ([]*entity.Tag, error) {
	var docs []tagDoc
	if err := s.findAll(ctx, entity.Tags, bson.M{}, &docs); err != nil {
		return nil, entity.Fault("list tags", err)
	}
	tags := make([]*entity.Tag, 0, len(docs))
	for _, d := range docs {
		tags = append(tags, &entity.Tag{ID: d.ID.Hex(), Name: d.Name, CreatedAt: d.CreatedAt})
	}
	return tags, nil
}

func (s *MongoStore) DeleteTag(ctx context.Context, id string) (bool, error) {
	return s.deleteByID(ctx, entity.Tags, id)
}

// --- users ---

func (s *MongoStore) CreateUser(ctx context.Context, u *entity.User) error {
	doc := userDoc{Name: u.Name, Email: u.Email, Password: u.Password, CreatedAt: time.Now().UTC()}
	id, err := s.insert(ctx, entity.Users, doc)
	if err != nil {
		return entity.Fault("insert user", err)
	}
	u.ID, u.CreatedAt = id, doc.CreatedAt
	return nil
}

func (s *MongoStore) GetUser(ctx context.Context, id string) (*entity.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", id, entity.ErrNotFound)
	}
	return s.findUser(ctx, "get user", bson.M{"_id": oid}, id)
}

func (s *MongoStore) FindUserByEmail(ctx context.Context, email string) (*entity.User, error) {
	return s.findUser(ctx, "find user", bson.M{"email": email}, email)
}

func (s *MongoStore) findUser(ctx context.Context, op string, filter bson.M, key string) (*entity.User, error) {
	var d userDoc
	err := s.coll(entity.Users).FindOne(ctx, filter).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("user %s: %w", key, entity.ErrNotFound)
	}
	if err != nil {
		return nil, entity.Fault(op, err)
	}
	return &entity.User{ID: d.ID.Hex(), Name: d.Name, Email: d.Email, Password: d.Password, CreatedAt: d.CreatedAt}, nil
}

// ListUsers returns all users without their password hashes.
func (s *MongoStore) ListUsers(ctx context.Context) ([]*entity.User, error) {
	var docs []userDoc
	opts := options.Find().SetProjection(bson.M{"password": 0}).SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := s.coll(entity.Users).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, entity.Fault("list users", err)
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, entity.Fault("list users", err)
	}
	users := make([]*entity.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, &entity.User{ID: d.ID.Hex(), Name: d.Name, Email: d.Email, CreatedAt: d.CreatedAt})
	}
	return users, nil
}

func (s *MongoStore) DeleteUser(ctx context.Context, id string) (bool, error) {
	return s.deleteByID(ctx, entity.Users, id)
}

// --- tasks ---

// CreateTask persists t. Reference ids must be ObjectID hex strings.
func (s *MongoStore) CreateTask(ctx context.Context, t *task.Task) error {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
	doc := taskDoc{
		Name:           t.Name,
		TimeToComplete: t.TimeToComplete,
		Status:         string(t.Status),
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
	var err error
	if doc.Project, err = objectID("project", t.Project); err != nil {
		return err
	}
	if doc.Team, err = objectID("team", t.Team); err != nil {
		return err
	}
	if doc.Owners, err = objectIDs("owners", t.Owners); err != nil {
		return err
	}
	if doc.Tags, err = objectIDs("tags", t.Tags); err != nil {
		return err
	}

	id, err := s.insert(ctx, entity.Tasks, doc)
	if err != nil {
		return entity.Fault("insert task", err)
	}
	t.ID = id
	return nil
}

func (s *MongoStore) GetTask(ctx context.Context, id string) (*task.Task, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", id, entity.ErrNotFound)
	}
	var d taskDoc
	err = s.coll(entity.Tasks).FindOne(ctx, bson.M{"_id": oid}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("task %s: %w", id, entity.ErrNotFound)
	}
	if err != nil {
		return nil, entity.Fault("get task", err)
	}
	return d.toTask(), nil
}

func (s *MongoStore) ListTasks(ctx context.Context, filter task.Filter) ([]*task.Task, error) {
	q := bson.M{}
	status := bson.M{}
	if filter.Status != "" {
		status["$eq"] = string(filter.Status)
	}
	if filter.NotStatus != "" {
		status["$ne"] = string(filter.NotStatus)
	}
	if len(status) > 0 {
		q["status"] = status
	}
	refs := []struct {
		field, id string
	}{{"team", filter.Team}, {"project", filter.Project}, {"owners", filter.Owner}, {"tags", filter.Tag}}
	for _, r := range refs {
		if r.id == "" {
			continue
		}
		oid, err := primitive.ObjectIDFromHex(r.id)
		if err != nil {
			return nil, nil
		}
		q[r.field] = oid
	}

	var docs []taskDoc
	if err := s.findAll(ctx, entity.Tasks, q, &docs); err != nil {
		return nil, entity.Fault("list tasks", err)
	}
	tasks := make([]*task.Task, 0, len(docs))
	for i := range docs {
		tasks = append(tasks, docs[i].toTask())
	}
	return tasks, nil
}

func (s *MongoStore) UpdateTask(ctx context.Context, id string, patch task.Patch) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("task %s: %w", id, entity.ErrNotFound)
	}
	set := bson.M{"updatedAt": patch.UpdatedAt}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Project != nil {
		if set["project"], err = objectID("project", *patch.Project); err != nil {
			return err
		}
	}
	if patch.Team != nil {
		if set["team"], err = objectID("team", *patch.Team); err != nil {
			return err
		}
	}
	if patch.Owners != nil {
		if set["owners"], err = objectIDs("owners", *patch.Owners); err != nil {
			return err
		}
	}
	if patch.Tags != nil {
		if set["tags"], err = objectIDs("tags", *patch.Tags); err != nil {
			return err
		}
	}
	if patch.TimeToComplete != nil {
		set["timeToComplete"] = *patch.TimeToComplete
	}
	if patch.Status != nil {
		set["status"] = string(*patch.Status)
	}

	res, err := s.coll(entity.Tasks).UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return entity.Fault("update task", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("task %s: %w", id, entity.ErrNotFound)
	}
	return nil
}

func (s *MongoStore) DeleteTask(ctx context.Context, id string) (bool, error) {
	return s.deleteByID(ctx, entity.Tasks, id)
}

// Lookup resolves ids in coll. Ids that are not valid ObjectIDs never resolve.
func (s *MongoStore) Lookup(ctx context.Context, coll entity.Collection, ids []string) (map[string]entity.Document, error) {
	docs := make(map[string]entity.Document, len(ids))
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return docs, nil
	}

	opts := options.Find().SetProjection(bson.M{"name": 1, "description": 1, "email": 1})
	cur, err := s.coll(coll).Find(ctx, bson.M{"_id": bson.M{"$in": oids}}, opts)
	if err != nil {
		return nil, entity.Fault("lookup "+string(coll), err)
	}
	var found []lookupDoc
	if err := cur.All(ctx, &found); err != nil {
		return nil, entity.Fault("lookup "+string(coll), err)
	}
	for _, d := range found {
		docs[d.ID.Hex()] = entity.Document{ID: d.ID.Hex(), Name: d.Name, Description: d.Description, Email: d.Email}
	}
	return docs, nil
}

// --- helpers ---

func (s *MongoStore) insert(ctx context.Context, coll entity.Collection, doc any) (string, error) {
	res, err := s.coll(coll).InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return "", fmt.Errorf("%w: %v", entity.ErrConflict, err)
	}
	if err != nil {
		return "", err
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	return oid.Hex(), nil
}

func (s *MongoStore) findAll(ctx context.Context, coll entity.Collection, filter bson.M, out any) error {
	cur, err := s.coll(coll).Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return err
	}
	return cur.All(ctx, out)
}

func (s *MongoStore) deleteByID(ctx context.Context, coll entity.Collection, id string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}
	res, err := s.coll(coll).DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, entity.Fault("delete from "+string(coll), err)
	}
	return res.DeletedCount > 0, nil
}

func (d *taskDoc) toTask() *task.Task {
	return &task.Task{
		ID:             d.ID.Hex(),
		Name:           d.Name,
		Project:        d.Project.Hex(),
		Team:           d.Team.Hex(),
		Owners:         hexes(d.Owners),
		Tags:           hexes(d.Tags),
		TimeToComplete: d.TimeToComplete,
		Status:         task.Status(d.Status),
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

func objectID(field, id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, &entity.ValidationError{Field: field, Msg: "must be a valid id"}
	}
	return oid, nil
}

func objectIDs(field string, ids []string) ([]primitive.ObjectID, error) {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := objectID(field, id)
		if err != nil {
			return nil, err
		}
		out = append(out, oid)
	}
	return out, nil
}

func hexes(oids []primitive.ObjectID) []string {
	out := make([]string, len(oids))
	for i, oid := range oids {
		out[i] = oid.Hex()
	}
	return out
}
