package api

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/gorilla/mux"

	"freet/pkg/model"
	"freet/pkg/services"
)

const testSecret = "test-secret"

// In-memory service implementations with the same set semantics as the
// mongo-backed ones: adds are $addToSet-like, removes $pull-like, and every
// kind keys one aggregate per anchor.

func contains(set []int64, id int64) bool {
	for _, v := range set {
		if v == id {
			return true
		}
	}
	return false
}

func addTo(set []int64, id int64) []int64 {
	if contains(set, id) {
		return set
	}
	return append(set, id)
}

func pull(set []int64, id int64) []int64 {
	out := set[:0]
	for _, v := range set {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

type fakeUsers struct {
	users  map[int64]model.User
	nextID int64
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[int64]model.User{}, nextID: 1}
}

func (f *fakeUsers) Login(ctx context.Context, reqID int64, username, password string) (string, error) {
	if _, err := f.GetUserId(ctx, reqID, username); err != nil {
		return "", services.ErrUnauthorized
	}
	return "session-token", nil
}

func (f *fakeUsers) RegisterUser(ctx context.Context, reqID int64, firstName, lastName, username, password string) (int64, error) {
	id := f.nextID
	f.nextID++
	if err := f.RegisterUserWithId(ctx, reqID, firstName, lastName, username, password, id); err != nil {
		return 0, err
	}
	return id, nil
}

func (f *fakeUsers) RegisterUserWithId(ctx context.Context, reqID int64, firstName, lastName, username, password string, userID int64) error {
	for _, u := range f.users {
		if u.Username == username {
			return services.ErrAlreadyExists
		}
	}
	f.users[userID] = model.User{UserID: userID, FirstName: firstName, LastName: lastName, Username: username}
	return nil
}

func (f *fakeUsers) GetUserId(ctx context.Context, reqID int64, username string) (int64, error) {
	for id, u := range f.users {
		if u.Username == username {
			return id, nil
		}
	}
	return 0, services.ErrNotFound
}

func (f *fakeUsers) GetUser(ctx context.Context, reqID int64, userID int64) (model.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return model.User{}, services.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetUserByUsername(ctx context.Context, reqID int64, username string) (model.User, error) {
	id, err := f.GetUserId(ctx, reqID, username)
	if err != nil {
		return model.User{}, err
	}
	return f.users[id], nil
}

type fakeFreets struct {
	freets  map[int64]model.Freet
	nextID  int64
	deleted []int64
}

func newFakeFreets() *fakeFreets {
	return &fakeFreets{freets: map[int64]model.Freet{}, nextID: 100}
}

func (f *fakeFreets) StoreFreet(ctx context.Context, reqID int64, authorID int64, text string) (model.Freet, error) {
	id := f.nextID
	f.nextID++
	freet := model.Freet{
		FreetID:   id,
		ReqID:     reqID,
		Author:    model.Creator{UserID: authorID},
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
	}
	f.freets[id] = freet
	return freet, nil
}

func (f *fakeFreets) ReadFreet(ctx context.Context, reqID int64, freetID int64) (model.Freet, error) {
	freet, ok := f.freets[freetID]
	if !ok {
		return model.Freet{}, services.ErrNotFound
	}
	return freet, nil
}

func (f *fakeFreets) ReadFreets(ctx context.Context, reqID int64, freetIDs []int64) ([]model.Freet, error) {
	var out []model.Freet
	for _, id := range freetIDs {
		if freet, ok := f.freets[id]; ok {
			out = append(out, freet)
		}
	}
	return out, nil
}

func (f *fakeFreets) ListFreets(ctx context.Context, reqID int64) ([]model.Freet, error) {
	var out []model.Freet
	for _, freet := range f.freets {
		out = append(out, freet)
	}
	return out, nil
}

func (f *fakeFreets) ListFreetsByAuthor(ctx context.Context, reqID int64, authorID int64) ([]model.Freet, error) {
	var out []model.Freet
	for _, freet := range f.freets {
		if freet.Author.UserID == authorID {
			out = append(out, freet)
		}
	}
	return out, nil
}

func (f *fakeFreets) EditFreet(ctx context.Context, reqID int64, freetID int64, text string) (model.Freet, error) {
	freet, ok := f.freets[freetID]
	if !ok {
		return model.Freet{}, services.ErrNotFound
	}
	freet.Text = text
	freet.Modified = time.Now().UnixMilli()
	f.freets[freetID] = freet
	return freet, nil
}

func (f *fakeFreets) DeleteFreet(ctx context.Context, reqID int64, freetID int64) (bool, error) {
	if _, ok := f.freets[freetID]; !ok {
		return false, nil
	}
	delete(f.freets, freetID)
	f.deleted = append(f.deleted, freetID)
	return true, nil
}

type fakeFollows struct {
	follows map[int64]*model.Follow
}

func newFakeFollows() *fakeFollows {
	return &fakeFollows{follows: map[int64]*model.Follow{}}
}

func (f *fakeFollows) CreateFollow(ctx context.Context, reqID int64, userID int64) (model.Follow, error) {
	if _, ok := f.follows[userID]; ok {
		return model.Follow{}, services.ErrAlreadyExists
	}
	f.follows[userID] = &model.Follow{UserID: userID}
	return *f.follows[userID], nil
}

func (f *fakeFollows) GetFollow(ctx context.Context, reqID int64, userID int64) (model.Follow, error) {
	follow, ok := f.follows[userID]
	if !ok {
		return model.Follow{}, services.ErrNotFound
	}
	return *follow, nil
}

func (f *fakeFollows) ListFollows(ctx context.Context, reqID int64) ([]model.Follow, error) {
	var out []model.Follow
	for _, follow := range f.follows {
		out = append(out, *follow)
	}
	return out, nil
}

func (f *fakeFollows) IsFollowing(ctx context.Context, reqID int64, userID int64, followID int64) (bool, error) {
	follow, ok := f.follows[userID]
	if !ok {
		return false, nil
	}
	return contains(follow.Following, followID), nil
}

func (f *fakeFollows) AddFollowing(ctx context.Context, reqID int64, userID int64, followID int64) (model.Follow, error) {
	follow, ok := f.follows[userID]
	if !ok {
		return model.Follow{}, services.ErrNotFound
	}
	follow.Following = addTo(follow.Following, followID)
	if other, ok := f.follows[followID]; ok {
		other.Followers = addTo(other.Followers, userID)
	}
	return *follow, nil
}

func (f *fakeFollows) RemoveFollowing(ctx context.Context, reqID int64, userID int64, followID int64) (model.Follow, error) {
	follow, ok := f.follows[userID]
	if !ok {
		return model.Follow{}, services.ErrNotFound
	}
	follow.Following = pull(follow.Following, followID)
	if other, ok := f.follows[followID]; ok {
		other.Followers = pull(other.Followers, userID)
	}
	return *follow, nil
}

func (f *fakeFollows) GetFollowers(ctx context.Context, reqID int64, userID int64) ([]int64, error) {
	follow, err := f.GetFollow(ctx, reqID, userID)
	if err != nil {
		return nil, err
	}
	return follow.Followers, nil
}

func (f *fakeFollows) GetFollowing(ctx context.Context, reqID int64, userID int64) ([]int64, error) {
	follow, err := f.GetFollow(ctx, reqID, userID)
	if err != nil {
		return nil, err
	}
	return follow.Following, nil
}

func (f *fakeFollows) DeleteFollow(ctx context.Context, reqID int64, userID int64) (bool, error) {
	if _, ok := f.follows[userID]; !ok {
		return false, nil
	}
	delete(f.follows, userID)
	for _, other := range f.follows {
		other.Following = pull(other.Following, userID)
		other.Followers = pull(other.Followers, userID)
	}
	return true, nil
}

type reactionState struct {
	reactions map[int64]*model.Reaction
}

func newReactionState() *reactionState {
	return &reactionState{reactions: map[int64]*model.Reaction{}}
}

func (s *reactionState) create(freetID int64) (model.Reaction, error) {
	if _, ok := s.reactions[freetID]; ok {
		return model.Reaction{}, services.ErrAlreadyExists
	}
	s.reactions[freetID] = &model.Reaction{FreetID: freetID}
	return *s.reactions[freetID], nil
}

func (s *reactionState) get(freetID int64) (model.Reaction, error) {
	reaction, ok := s.reactions[freetID]
	if !ok {
		return model.Reaction{}, services.ErrNotFound
	}
	return *reaction, nil
}

func (s *reactionState) list() []model.Reaction {
	var out []model.Reaction
	for _, reaction := range s.reactions {
		out = append(out, *reaction)
	}
	return out
}

func (s *reactionState) listByUser(userID int64) []model.Reaction {
	var out []model.Reaction
	for _, reaction := range s.reactions {
		if contains(reaction.UserIDs, userID) {
			out = append(out, *reaction)
		}
	}
	return out
}

func (s *reactionState) add(userID, freetID int64) (model.Reaction, error) {
	reaction, ok := s.reactions[freetID]
	if !ok {
		return model.Reaction{}, services.ErrNotFound
	}
	reaction.UserIDs = addTo(reaction.UserIDs, userID)
	return *reaction, nil
}

func (s *reactionState) remove(userID, freetID int64) (model.Reaction, error) {
	reaction, ok := s.reactions[freetID]
	if !ok {
		return model.Reaction{}, services.ErrNotFound
	}
	reaction.UserIDs = pull(reaction.UserIDs, userID)
	return *reaction, nil
}

func (s *reactionState) delete(freetID int64) bool {
	if _, ok := s.reactions[freetID]; !ok {
		return false
	}
	delete(s.reactions, freetID)
	return true
}

type fakeLikes struct{ state *reactionState }

func (f *fakeLikes) CreateLike(ctx context.Context, reqID int64, freetID int64) (model.Reaction, error) {
	return f.state.create(freetID)
}
func (f *fakeLikes) GetLike(ctx context.Context, reqID int64, freetID int64) (model.Reaction, error) {
	return f.state.get(freetID)
}
func (f *fakeLikes) ListLikes(ctx context.Context, reqID int64) ([]model.Reaction, error) {
	return f.state.list(), nil
}
func (f *fakeLikes) ListLikesByUser(ctx context.Context, reqID int64, userID int64) ([]model.Reaction, error) {
	return f.state.listByUser(userID), nil
}
func (f *fakeLikes) HasLiked(ctx context.Context, reqID int64, userID int64, freetID int64) (bool, error) {
	reaction, err := f.state.get(freetID)
	if err != nil {
		return false, nil
	}
	return contains(reaction.UserIDs, userID), nil
}
func (f *fakeLikes) AddLike(ctx context.Context, reqID int64, userID int64, freetID int64) (model.Reaction, error) {
	return f.state.add(userID, freetID)
}
func (f *fakeLikes) RemoveLike(ctx context.Context, reqID int64, userID int64, freetID int64) (model.Reaction, error) {
	return f.state.remove(userID, freetID)
}
func (f *fakeLikes) CountLikes(ctx context.Context, reqID int64, freetID int64) (int64, error) {
	reaction, err := f.state.get(freetID)
	if err != nil {
		return 0, err
	}
	return int64(len(reaction.UserIDs)), nil
}
func (f *fakeLikes) DeleteLike(ctx context.Context, reqID int64, freetID int64) (bool, error) {
	return f.state.delete(freetID), nil
}

type fakeRefreets struct{ state *reactionState }

func (f *fakeRefreets) CreateRefreet(ctx context.Context, reqID int64, freetID int64) (model.Reaction, error) {
	return f.state.create(freetID)
}
func (f *fakeRefreets) GetRefreet(ctx context.Context, reqID int64, freetID int64) (model.Reaction, error) {
	return f.state.get(freetID)
}
func (f *fakeRefreets) ListRefreets(ctx context.Context, reqID int64) ([]model.Reaction, error) {
	return f.state.list(), nil
}
func (f *fakeRefreets) ListRefreetsByUser(ctx context.Context, reqID int64, userID int64) ([]model.Reaction, error) {
	return f.state.listByUser(userID), nil
}
func (f *fakeRefreets) HasRefreeted(ctx context.Context, reqID int64, userID int64, freetID int64) (bool, error) {
	reaction, err := f.state.get(freetID)
	if err != nil {
		return false, nil
	}
	return contains(reaction.UserIDs, userID), nil
}
func (f *fakeRefreets) AddRefreet(ctx context.Context, reqID int64, userID int64, freetID int64) (model.Reaction, error) {
	return f.state.add(userID, freetID)
}
func (f *fakeRefreets) RemoveRefreet(ctx context.Context, reqID int64, userID int64, freetID int64) (model.Reaction, error) {
	return f.state.remove(userID, freetID)
}
func (f *fakeRefreets) CountRefreets(ctx context.Context, reqID int64, freetID int64) (int64, error) {
	reaction, err := f.state.get(freetID)
	if err != nil {
		return 0, err
	}
	return int64(len(reaction.UserIDs)), nil
}
func (f *fakeRefreets) DeleteRefreet(ctx context.Context, reqID int64, freetID int64) (bool, error) {
	return f.state.delete(freetID), nil
}

type fakeCircles struct {
	circles       map[int64]*model.Circle
	nextID        int64
	isMemberCalls int
}

func newFakeCircles() *fakeCircles {
	return &fakeCircles{circles: map[int64]*model.Circle{}, nextID: 500}
}

func (f *fakeCircles) CreateCircle(ctx context.Context, reqID int64, name string, ownerID int64) (model.Circle, error) {
	id := f.nextID
	f.nextID++
	f.circles[id] = &model.Circle{CircleID: id, Name: name, OwnerID: ownerID, MemberIDs: []int64{ownerID}}
	return *f.circles[id], nil
}

func (f *fakeCircles) GetCircle(ctx context.Context, reqID int64, circleID int64) (model.Circle, error) {
	circle, ok := f.circles[circleID]
	if !ok {
		return model.Circle{}, services.ErrNotFound
	}
	return *circle, nil
}

func (f *fakeCircles) ListCircles(ctx context.Context, reqID int64) ([]model.Circle, error) {
	var out []model.Circle
	for _, circle := range f.circles {
		out = append(out, *circle)
	}
	return out, nil
}

func (f *fakeCircles) ListCirclesByOwner(ctx context.Context, reqID int64, ownerID int64) ([]model.Circle, error) {
	var out []model.Circle
	for _, circle := range f.circles {
		if circle.OwnerID == ownerID {
			out = append(out, *circle)
		}
	}
	return out, nil
}

func (f *fakeCircles) ListCirclesByMember(ctx context.Context, reqID int64, memberID int64) ([]model.Circle, error) {
	var out []model.Circle
	for _, circle := range f.circles {
		if contains(circle.MemberIDs, memberID) {
			out = append(out, *circle)
		}
	}
	return out, nil
}

func (f *fakeCircles) IsMember(ctx context.Context, reqID int64, circleID int64, userID int64) (bool, error) {
	f.isMemberCalls++
	circle, ok := f.circles[circleID]
	if !ok {
		return false, nil
	}
	return contains(circle.MemberIDs, userID), nil
}

func (f *fakeCircles) IsSharedFreet(ctx context.Context, reqID int64, circleID int64, freetID int64) (bool, error) {
	circle, ok := f.circles[circleID]
	if !ok {
		return false, nil
	}
	return contains(circle.FreetIDs, freetID), nil
}

func (f *fakeCircles) AddMember(ctx context.Context, reqID int64, circleID int64, userID int64) (model.Circle, error) {
	circle, ok := f.circles[circleID]
	if !ok {
		return model.Circle{}, services.ErrNotFound
	}
	circle.MemberIDs = addTo(circle.MemberIDs, userID)
	return *circle, nil
}

func (f *fakeCircles) RemoveMember(ctx context.Context, reqID int64, circleID int64, userID int64) (model.Circle, error) {
	circle, ok := f.circles[circleID]
	if !ok {
		return model.Circle{}, services.ErrNotFound
	}
	circle.MemberIDs = pull(circle.MemberIDs, userID)
	return *circle, nil
}

func (f *fakeCircles) AddFreet(ctx context.Context, reqID int64, circleID int64, freetID int64) (model.Circle, error) {
	circle, ok := f.circles[circleID]
	if !ok {
		return model.Circle{}, services.ErrNotFound
	}
	circle.FreetIDs = addTo(circle.FreetIDs, freetID)
	return *circle, nil
}

func (f *fakeCircles) RemoveFreet(ctx context.Context, reqID int64, circleID int64, freetID int64) (model.Circle, error) {
	circle, ok := f.circles[circleID]
	if !ok {
		return model.Circle{}, services.ErrNotFound
	}
	circle.FreetIDs = pull(circle.FreetIDs, freetID)
	return *circle, nil
}

func (f *fakeCircles) RemoveFreetFromAll(ctx context.Context, reqID int64, freetID int64) error {
	for _, circle := range f.circles {
		circle.FreetIDs = pull(circle.FreetIDs, freetID)
	}
	return nil
}

func (f *fakeCircles) DeleteCircle(ctx context.Context, reqID int64, circleID int64) (bool, error) {
	if _, ok := f.circles[circleID]; !ok {
		return false, nil
	}
	delete(f.circles, circleID)
	return true, nil
}

type testEnv struct {
	users    *fakeUsers
	freets   *fakeFreets
	follows  *fakeFollows
	likes    *fakeLikes
	refreets *fakeRefreets
	circles  *fakeCircles
	handler  *mux.Router
}

func newTestEnv() *testEnv {
	env := &testEnv{
		users:    newFakeUsers(),
		freets:   newFakeFreets(),
		follows:  newFakeFollows(),
		likes:    &fakeLikes{state: newReactionState()},
		refreets: &fakeRefreets{state: newReactionState()},
		circles:  newFakeCircles(),
	}
	ro := &router{
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		secret:   testSecret,
		region:   "local",
		users:    env.users,
		freets:   env.freets,
		follows:  env.follows,
		likes:    env.likes,
		refreets: env.refreets,
		circles:  env.circles,
	}
	env.handler = newRouter(ro)
	return env
}

func mintToken(userID int64, username string) string {
	claims := &services.Claims{
		Username:       username,
		UserID:         formatID(userID),
		Timestamp:      time.Now().UnixMilli(),
		StandardClaims: jwt.StandardClaims{ExpiresAt: time.Now().Add(time.Hour).Unix()},
	}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	return token
}
