// Package cache 用 Redis 缓存成员关系查询
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"Soundcheck/logger"
	"Soundcheck/model"
	"Soundcheck/repository"

	"github.com/redis/go-redis/v9"
)

const (
	memberKey    = "project:%s:member:%s"     // String: ProjectMember JSON
	memberGenKey = "project:%s:member:%s:gen" // String: 失效计数
	memberTTL    = 5 * time.Minute
)

// fillScript 仅在读取失效计数之后没有发生失效时才写入缓存。
// KEYS: 缓存键, 计数键。ARGV: 值, 计数, 过期毫秒
var fillScript = redis.NewScript(`
if (redis.call('GET', KEYS[2]) or '0') ~= ARGV[2] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// MemberCache 包装 ProjectRepository，权限检查所用的 GetMember 优先走 Redis。
// 成员变更先写数据库再删除缓存；Redis 出错时回退到数据库
type MemberCache struct {
	repository.ProjectRepository
	client *redis.Client
	ttl    time.Duration
}

// NewMemberCache 创建成员缓存
func NewMemberCache(projects repository.ProjectRepository, client *redis.Client) *MemberCache {
	return &MemberCache{ProjectRepository: projects, client: client, ttl: memberTTL}
}

func key(projectID, userID string) string {
	return fmt.Sprintf(memberKey, projectID, userID)
}

func genKey(projectID, userID string) string {
	return fmt.Sprintf(memberGenKey, projectID, userID)
}

// GetMember 先查缓存，未命中再查数据库。回填时若期间发生过失效则放弃写入，
// 避免把刚移除的成员重新写回缓存。
func (c *MemberCache) GetMember(ctx context.Context, projectID, userID string) (*model.ProjectMember, error) {
	raw, err := c.client.Get(ctx, key(projectID, userID)).Bytes()
	switch {
	case err == nil:
		var m model.ProjectMember
		if jsonErr := json.Unmarshal(raw, &m); jsonErr == nil {
			return &m, nil
		}
		c.drop(ctx, projectID, userID)
	case !errors.Is(err, redis.Nil):
		logger.Warn("member cache read failed",
			logger.String("project", projectID),
			logger.ErrorField(err))
	}

	gen, genErr := c.client.Get(ctx, genKey(projectID, userID)).Result()
	if errors.Is(genErr, redis.Nil) {
		gen, genErr = "0", nil
	}

	m, err := c.ProjectRepository.GetMember(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	if genErr != nil {
		return m, nil
	}
	if data, err := json.Marshal(m); err == nil {
		keys := []string{key(projectID, userID), genKey(projectID, userID)}
		if err := fillScript.Run(ctx, c.client, keys, data, gen, c.ttl.Milliseconds()).Err(); err != nil {
			logger.Warn("member cache write failed",
				logger.String("project", projectID),
				logger.ErrorField(err))
		}
	}
	return m, nil
}

func (c *MemberCache) AddMember(ctx context.Context, member *model.ProjectMember) error {
	if err := c.ProjectRepository.AddMember(ctx, member); err != nil {
		return err
	}
	c.drop(ctx, member.ProjectID, member.UserID)
	return nil
}

func (c *MemberCache) RemoveMember(ctx context.Context, projectID, userID string) error {
	if err := c.ProjectRepository.RemoveMember(ctx, projectID, userID); err != nil {
		return err
	}
	c.drop(ctx, projectID, userID)
	return nil
}

// drop 先递增失效计数再删除缓存，使进行中的回填作废
func (c *MemberCache) drop(ctx context.Context, projectID, userID string) {
	pipe := c.client.TxPipeline()
	pipe.Incr(ctx, genKey(projectID, userID))
	pipe.Expire(ctx, genKey(projectID, userID), 2*c.ttl)
	pipe.Del(ctx, key(projectID, userID))
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warn("member cache invalidation failed",
			logger.String("project", projectID),
			logger.String("user", userID),
			logger.ErrorField(err))
	}
}
