package templatestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JonMunkholm/sheetimport/internal/mapping"
)

// RedisOptions holds Redis connection settings.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	Prefix   string
}

// Redis stores each template as a hash under <prefix>template:<id> and
// keeps the set of ids under <prefix>templates.
type Redis struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
		PoolSize: opts.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "sheetimport:"
	}
	return &Redis{client: client, prefix: prefix, now: time.Now}, nil
}

func (s *Redis) key(id string) string { return s.prefix + "template:" + id }
func (s *Redis) index() string        { return s.prefix + "templates" }

func (s *Redis) Save(ctx context.Context, t mapping.Template) (mapping.Template, error) {
	t = mapping.NewRecord(t, s.now())
	fields, err := toHash(t)
	if err != nil {
		return mapping.Template{}, err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key(t.ID), fields)
		pipe.SAdd(ctx, s.index(), t.ID)
		return nil
	})
	if err != nil {
		return mapping.Template{}, fmt.Errorf("redis save: %w", err)
	}
	logWrite(ctx, KindRedis, "save", t.ID)
	return t, nil
}

func (s *Redis) Load(ctx context.Context) ([]mapping.Template, error) {
	ids, err := s.client.SMembers(ctx, s.index()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis members: %w", err)
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.key(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis load: %w", err)
	}

	out := make([]mapping.Template, 0, len(ids))
	for _, cmd := range cmds {
		h := cmd.Val()
		if len(h) == 0 {
			continue
		}
		t, err := fromHash(h)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Redis) get(ctx context.Context, id string) (mapping.Template, bool, error) {
	h, err := s.client.HGetAll(ctx, s.key(id)).Result()
	if errors.Is(err, redis.Nil) || (err == nil && len(h) == 0) {
		return mapping.Template{}, false, nil
	}
	if err != nil {
		return mapping.Template{}, false, fmt.Errorf("redis get: %w", err)
	}
	t, err := fromHash(h)
	return t, err == nil, err
}

func (s *Redis) Update(ctx context.Context, id string, p mapping.Patch) (mapping.Template, error) {
	t, ok, err := s.get(ctx, id)
	if err != nil {
		return mapping.Template{}, err
	}
	if !ok {
		return mapping.Template{}, notFound(ctx, KindRedis, "update", id)
	}

	t = p.Apply(t, s.now())
	fields, err := toHash(t)
	if err != nil {
		return mapping.Template{}, err
	}
	if err := s.client.HSet(ctx, s.key(id), fields).Err(); err != nil {
		return mapping.Template{}, fmt.Errorf("redis update: %w", err)
	}
	logWrite(ctx, KindRedis, "update", id)
	return t, nil
}

func (s *Redis) Delete(ctx context.Context, id string) error {
	removed, err := s.client.SRem(ctx, s.index(), id).Result()
	if err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	if removed == 0 {
		return notFound(ctx, KindRedis, "delete", id)
	}
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	logWrite(ctx, KindRedis, "delete", id)
	return nil
}

func (s *Redis) IncrementUsage(ctx context.Context, id string, at time.Time) (mapping.Template, error) {
	member, err := s.client.SIsMember(ctx, s.index(), id).Result()
	if err != nil {
		return mapping.Template{}, fmt.Errorf("redis use: %w", err)
	}
	if !member {
		return mapping.Template{}, notFound(ctx, KindRedis, "use", id)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, s.key(id), "useCount", 1)
		pipe.HSet(ctx, s.key(id), "lastUsed", at.UTC().Format(time.RFC3339Nano))
		return nil
	})
	if err != nil {
		return mapping.Template{}, fmt.Errorf("redis use: %w", err)
	}

	t, ok, err := s.get(ctx, id)
	if err != nil {
		return mapping.Template{}, err
	}
	if !ok {
		return mapping.Template{}, notFound(ctx, KindRedis, "use", id)
	}
	logWrite(ctx, KindRedis, "use", id)
	return t, nil
}

// Close closes the Redis connection.
func (s *Redis) Close() error {
	return s.client.Close()
}

func toHash(t mapping.Template) (map[string]any, error) {
	mappings, patterns, err := encodeLists(t)
	if err != nil {
		return nil, err
	}
	h := map[string]any{
		"id":                 t.ID,
		"name":               t.Name,
		"description":        t.Description,
		"mappings":           string(mappings),
		"applicablePatterns": string(patterns),
		"useCount":           t.UseCount,
		"createdAt":          t.CreatedAt.Format(time.RFC3339Nano),
		"updatedAt":          t.UpdatedAt.Format(time.RFC3339Nano),
	}
	if t.LastUsed != nil {
		h["lastUsed"] = t.LastUsed.UTC().Format(time.RFC3339Nano)
	}
	return h, nil
}

func fromHash(h map[string]string) (mapping.Template, error) {
	t := mapping.Template{
		ID:          h["id"],
		Name:        h["name"],
		Description: h["description"],
	}

	var err error
	if v := h["useCount"]; v != "" {
		if t.UseCount, err = strconv.Atoi(v); err != nil {
			return t, fmt.Errorf("decode useCount: %w", err)
		}
	}
	if t.CreatedAt, err = time.Parse(time.RFC3339Nano, h["createdAt"]); err != nil {
		return t, fmt.Errorf("decode createdAt: %w", err)
	}
	if t.UpdatedAt, err = time.Parse(time.RFC3339Nano, h["updatedAt"]); err != nil {
		return t, fmt.Errorf("decode updatedAt: %w", err)
	}
	if v := h["lastUsed"]; v != "" {
		at, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return t, fmt.Errorf("decode lastUsed: %w", err)
		}
		t.LastUsed = &at
	}
	return t, decodeLists(&t, []byte(h["mappings"]), []byte(h["applicablePatterns"]))
}
