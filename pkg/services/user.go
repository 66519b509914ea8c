package services

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"freet/pkg/model"
	"freet/pkg/storage"

	"github.com/ServiceWeaver/weaver"
	"github.com/bradfitz/gomemcache/memcache"
	"github.com/dgrijalva/jwt-go"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

var letterRunes = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")

type UserService interface {
	Login(ctx context.Context, reqID int64, username string, password string) (string, error)
	RegisterUser(ctx context.Context, reqID int64, firstName string, lastName string, username string, password string) (int64, error)
	RegisterUserWithId(ctx context.Context, reqID int64, firstName string, lastName string, username string, password string, userID int64) error
	GetUserId(ctx context.Context, reqID int64, username string) (int64, error)
	GetUser(ctx context.Context, reqID int64, userID int64) (model.User, error)
	GetUserByUsername(ctx context.Context, reqID int64, username string) (model.User, error)
}

type LoginInfo struct {
	UserID   int64  `json:"user_id"`
	Password string `json:"password"`
	Salt     string `json:"salt"`
}

type Claims struct {
	Username  string `json:"username"`
	UserID    string `json:"user_id"`
	Timestamp int64  `json:"timestamp"`
	jwt.StandardClaims
}

type userService struct {
	weaver.Implements[UserService]
	weaver.WithConfig[userServiceOptions]
	followService   weaver.Ref[FollowService]
	uniqueIdService weaver.Ref[UniqueIdService]
	mongoClient     *mongo.Client
	redisClient     *redis.Client
	memCachedClient *memcache.Client
}

type userServiceOptions struct {
	MongoDBAddr   string `toml:"mongodb_address"`
	MongoDBPort   int    `toml:"mongodb_port"`
	RedisAddr     string `toml:"redis_address"`
	RedisPort     int    `toml:"redis_port"`
	MemCachedAddr string `toml:"memcached_address"`
	MemCachedPort int    `toml:"memcached_port"`
	JWTSecret     string `toml:"jwt_secret"`
}

func (u *userService) genRandomStr(length int) string {
	b := make([]rune, length)
	for i := range b {
		b[i] = letterRunes[rand.Intn(len(letterRunes))]
	}
	return string(b)
}

func (u *userService) hashPwd(pwd []byte) string {
	hasher := sha1.New()
	hasher.Write(pwd)
	return base64.URLEncoding.EncodeToString(hasher.Sum(nil))
}

func (u *userService) Init(ctx context.Context) error {
	logger := u.Logger(ctx)

	var err error
	u.mongoClient, err = storage.MongoDBClient(ctx, u.Config().MongoDBAddr, u.Config().MongoDBPort)
	if err != nil {
		logger.Error(err.Error())
		return err
	}
	u.redisClient = storage.RedisClient(u.Config().RedisAddr, u.Config().RedisPort)
	u.memCachedClient = storage.MemCachedClient(u.Config().MemCachedAddr, u.Config().MemCachedPort)

	logger.Info("user service running!",
		"mongodb_addr", u.Config().MongoDBAddr, "mongodb_port", u.Config().MongoDBPort,
		"redis_addr", u.Config().RedisAddr, "redis_port", u.Config().RedisPort,
		"memcached_addr", u.Config().MemCachedAddr, "memcached_port", u.Config().MemCachedPort,
	)
	return nil
}

func (u *userService) Login(ctx context.Context, reqID int64, username string, password string) (string, error) {
	logger := u.Logger(ctx)
	timestamp := time.Now().UnixNano() / int64(time.Millisecond)
	var login LoginInfo
	result, err := u.redisClient.Get(ctx, username+":Login").Bytes()
	if err != nil && err != redis.Nil {
		// error reading cache
		logger.Error("error reading user login info from cache", "msg", err.Error())
		return "", err
	} else if err == nil {
		// username found in cache
		err := json.Unmarshal(result, &login)
		if err != nil {
			logger.Error("error parsing user from cache result", "msg", err.Error())
			return "", err
		}
	} else {
		// username does not exist in cache
		// so we get it from db
		user, err := u.findUserByUsername(ctx, username)
		if err != nil {
			return "", err
		}
		login.Password = user.PwdHashed
		login.Salt = user.Salt
		login.UserID = user.UserID
	}

	hashedPwd := u.hashPwd([]byte(password + login.Salt))
	if hashedPwd != login.Password {
		return "", ErrUnauthorized
	}
	expirationTime := time.Now().Add(6 * time.Minute)
	claims := &Claims{
		Username:       username,
		UserID:         strconv.FormatInt(login.UserID, 10),
		Timestamp:      timestamp,
		StandardClaims: jwt.StandardClaims{ExpiresAt: expirationTime.Unix()},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString([]byte(u.Config().JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to create login token")
	}

	loginJSON, err := json.Marshal(login)
	if err != nil {
		return "", err
	}
	err = u.redisClient.Set(ctx, username+":Login", loginJSON, 0).Err()
	if err != nil {
		return "", err
	}
	return tokenStr, nil
}

func (u *userService) RegisterUserWithId(ctx context.Context, reqID int64, firstName string, lastName string, username string, password string, userID int64) error {
	logger := u.Logger(ctx)
	logger.Debug("entering RegisterUserWithId", "req_id", reqID, "first_name", firstName, "last_name", lastName, "username", username, "user_id", userID)

	collection := u.mongoClient.Database("user").Collection("user")
	filter := bson.D{
		{Key: "username", Value: username},
	}
	cur, err := collection.Find(ctx, filter)
	if err != nil {
		logger.Error("error finding user in mongodb", "msg", err.Error())
		return err
	}
	exists := cur.TryNext(ctx)
	if exists {
		logger.Debug("username already registered", "username", username)
		return ErrAlreadyExists
	}
	salt := u.genRandomStr(32)
	hashedPwd := u.hashPwd([]byte(password + salt))
	user := model.User{
		UserID:    userID,
		FirstName: firstName,
		LastName:  lastName,
		Username:  username,
		PwdHashed: hashedPwd,
		Salt:      salt,
	}
	_, err = collection.InsertOne(ctx, user)
	if err != nil {
		logger.Error("error inserting new user in mongodb")
		return err
	}
	// every user gets its follow aggregate at registration
	_, err = u.followService.Get().CreateFollow(ctx, reqID, userID)
	return err
}

func (u *userService) RegisterUser(ctx context.Context, reqID int64, firstName string, lastName string, username string, password string) (int64, error) {
	logger := u.Logger(ctx)
	logger.Debug("entering RegisterUser", "req_id", reqID, "first_name", firstName, "last_name", lastName, "username", username)

	id, err := u.uniqueIdService.Get().NextID(ctx, reqID)
	if err != nil {
		logger.Error("error generating user id", "msg", err.Error())
		return 0, err
	}
	return id, u.RegisterUserWithId(ctx, reqID, firstName, lastName, username, password, id)
}

func (u *userService) findUserByUsername(ctx context.Context, username string) (model.User, error) {
	logger := u.Logger(ctx)

	var user model.User
	collection := u.mongoClient.Database("user").Collection("user")
	filter := bson.D{
		{Key: "username", Value: username},
	}
	err := collection.FindOne(ctx, filter).Decode(&user)
	if err == mongo.ErrNoDocuments {
		logger.Debug("username does not exist", "username", username)
		return model.User{}, ErrNotFound
	}
	if err != nil {
		logger.Error("error finding user in mongodb", "msg", err.Error())
		return model.User{}, err
	}
	return user, nil
}

// GetUserId attempts to read the user id from cache and return it
// If not found, it fetches the user from the db and uploads it to cache
func (u *userService) GetUserId(ctx context.Context, reqID int64, username string) (int64, error) {
	logger := u.Logger(ctx)
	logger.Debug("entering GetUserId", "req_id", reqID, "username", username)

	userID, err := u.redisClient.Get(ctx, username+":user_id").Int64()
	if err != nil {
		if err != redis.Nil {
			// error reading cache
			logger.Error("error reading user id from cache", "msg", err.Error())
			return 0, err
		}
		// user not found in cache
		// so we get it from db and write to cache
		user, err := u.findUserByUsername(ctx, username)
		if err != nil {
			return 0, err
		}
		userID = user.UserID
		err = u.redisClient.Set(ctx, username+":user_id", userID, 0).Err()
		if err != nil {
			return 0, err
		}
	}
	return userID, nil
}

// GetUser reads a user snapshot through the memcached layer.
func (u *userService) GetUser(ctx context.Context, reqID int64, userID int64) (model.User, error) {
	logger := u.Logger(ctx)
	logger.Debug("entering GetUser", "req_id", reqID, "user_id", userID)

	key := "user:" + strconv.FormatInt(userID, 10)
	item, err := u.memCachedClient.Get(key)
	if err == nil {
		var user model.User
		if err := json.Unmarshal(item.Value, &user); err != nil {
			logger.Error("error parsing user from memcached result", "msg", err.Error())
			return model.User{}, err
		}
		return user, nil
	}
	if err != memcache.ErrCacheMiss {
		logger.Error("error reading user from memcached", "msg", err.Error())
		return model.User{}, err
	}

	var user model.User
	collection := u.mongoClient.Database("user").Collection("user")
	filter := bson.D{
		{Key: "user_id", Value: userID},
	}
	err = collection.FindOne(ctx, filter).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		logger.Error("error finding user in mongodb", "msg", err.Error())
		return model.User{}, err
	}

	userJSON, err := json.Marshal(user)
	if err != nil {
		return model.User{}, err
	}
	err = u.memCachedClient.Set(&memcache.Item{Key: key, Value: userJSON})
	if err != nil {
		logger.Error("error writing user to memcached", "msg", err.Error())
	}
	return user, nil
}

func (u *userService) GetUserByUsername(ctx context.Context, reqID int64, username string) (model.User, error) {
	logger := u.Logger(ctx)
	logger.Debug("entering GetUserByUsername", "req_id", reqID, "username", username)

	return u.findUserByUsername(ctx, username)
}
