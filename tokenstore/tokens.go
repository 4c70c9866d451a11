package tokenstore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
)

// TokenTTL bounds how long a password-reset token stays redeemable.
const TokenTTL = 15 * time.Minute

// Store keeps single-use password-reset tokens in Redis, keyed by username
// with a TTL, so tokens survive process restarts and are shared across
// instances.
type Store struct {
	client *redis.Client
}

func New(client *redis.Client) *Store {
	return &Store{client: client}
}

// ConnectRedis builds a client from REDIS_HOST/REDIS_PORT and verifies the
// connection.
func ConnectRedis(ctx context.Context) (*redis.Client, error) {
	host := os.Getenv("REDIS_HOST")
	if host == "" {
		host = "localhost"
	}
	port := os.Getenv("REDIS_PORT")
	if port == "" {
		port = "6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}

func key(username string) string {
	return "password-reset:" + username
}

// Issue generates a fresh 32-byte hex token for the user and stores it with
// TokenTTL, replacing any earlier token.
func (s *Store) Issue(ctx context.Context, username string) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	token := hex.EncodeToString(raw)
	if err := s.client.Set(ctx, key(username), token, TokenTTL).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Redeem consumes the user's token if it matches. A token is single-use:
// a successful redeem deletes it, and a mismatch deletes it too so a leaked
// guess cannot be retried against the stored value.
func (s *Store) Redeem(ctx context.Context, username, token string) (bool, error) {
	stored, err := s.client.Get(ctx, key(username)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := s.client.Del(ctx, key(username)).Err(); err != nil {
		return false, err
	}
	return stored == token, nil
}
