package fleetstate

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"fleetcore/reservation"
	"fleetcore/robot"
)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func robotKey(id int) string {
	return fmt.Sprintf("fleetcore:robot:%d", id)
}

const (
	allRobotsKey    = "fleetcore:robots"
	warningsKey     = "fleetcore:warnings"
	reservationsKey = "fleetcore:reservations"
	tickKey         = "fleetcore:tick"
)

// SetRobots writes every robot view and the roster set in one pipeline.
func (r *RedisStore) SetRobots(ctx context.Context, views []robot.View) error {
	pipe := r.client.Pipeline()
	for _, v := range views {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		pipe.Set(ctx, robotKey(v.ID), data, 0)
		pipe.SAdd(ctx, allRobotsKey, v.ID)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisStore) GetRobot(ctx context.Context, id int) (*robot.View, error) {
	data, err := r.client.Get(ctx, robotKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var v robot.View
	return &v, json.Unmarshal(data, &v)
}

func (r *RedisStore) GetAllRobotIDs(ctx context.Context) ([]int, error) {
	members, err := r.client.SMembers(ctx, allRobotsKey).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(members))
	for _, m := range members {
		id, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// SetTickState writes the per-tick warnings, reservations and tick number.
func (r *RedisStore) SetTickState(ctx context.Context, tick uint64, warnings []string, res []reservation.Entry) error {
	w, err := json.Marshal(warnings)
	if err != nil {
		return err
	}
	rs, err := json.Marshal(res)
	if err != nil {
		return err
	}
	pipe := r.client.Pipeline()
	pipe.Set(ctx, warningsKey, w, 0)
	pipe.Set(ctx, reservationsKey, rs, 0)
	pipe.Set(ctx, tickKey, tick, 0)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisStore) GetWarnings(ctx context.Context) ([]string, error) {
	data, err := r.client.Get(ctx, warningsKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var w []string
	return w, json.Unmarshal(data, &w)
}

func (r *RedisStore) RemoveRobot(ctx context.Context, id int) error {
	pipe := r.client.Pipeline()
	pipe.Del(ctx, robotKey(id))
	pipe.SRem(ctx, allRobotsKey, id)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisStore) FlushAll(ctx context.Context) error {
	ids, err := r.GetAllRobotIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		r.RemoveRobot(ctx, id)
	}
	return r.client.Del(ctx, allRobotsKey, warningsKey, reservationsKey, tickKey).Err()
}
