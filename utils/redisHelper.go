package utils

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/fluxo_backend/config"
)

var (
	ErrCompanyLockUnavailable = errors.New("service not ready (redis lock not initialized)")
	ErrCompanyLockNotObtained = errors.New("could not obtain lock for company")
)

func GetTypeName[T any]() string {
	var v T
	return reflect.TypeOf(v).Name()
}

func listKey[T any](companyId int, version int64) string {
	return fmt.Sprintf("%sList:%d:v%d", GetTypeName[T](), companyId, version)
}

func cacheVersionKey(scope string, companyId int) string {
	return fmt.Sprintf("%sVersion:%d", scope, companyId)
}

// GetCacheVersion returns the company's current cache version for scope.
// Read it before loading from the database and store under that same version:
// a load that races a BumpCacheVersion then lands under a key nobody reads anymore.
func GetCacheVersion(scope string, companyId int) (int64, error) {
	return config.GetRedisInt(cacheVersionKey(scope, companyId))
}

// BumpCacheVersion invalidates every list cached under scope for the company.
func BumpCacheVersion(scope string, companyId int) (int64, error) {
	return config.IncrRedisKey(cacheVersionKey(scope, companyId))
}

// store a company scoped list, TypeList:$company_id:v$version
func StoreRedisList[T any](obj []*T, companyId int, version int64, exp time.Duration) error {
	return config.SetRedisObject(listKey[T](companyId, version), obj, exp)
}

// returns nil if does not exist
func RetrieveRedisList[T any](companyId int, version int64) ([]*T, error) {
	var result []*T
	exists, err := config.GetRedisObject(listKey[T](companyId, version), &result)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return result, nil
}

// CompanyLock runs fn while holding the redis lock "<lockType>:<companyId>".
// It waits up to wait for a lock held elsewhere; the lock lives for ttl unless released first.
func CompanyLock(ctx context.Context, lockType string, companyId int, ttl time.Duration, wait time.Duration, fn func(ctx context.Context) error) error {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		return ErrCompanyLockUnavailable
	}

	lockKey := fmt.Sprintf("%s:%d", lockType, companyId)
	obtainCtx := ctx
	if wait > 0 {
		var cancel context.CancelFunc
		obtainCtx, cancel = context.WithTimeout(ctx, wait)
		defer cancel()
	}
	var opts *redislock.Options
	if wait > 0 {
		opts = &redislock.Options{RetryStrategy: redislock.LinearBackoff(100 * time.Millisecond)}
	}

	lock, err := locker.Obtain(obtainCtx, lockKey, ttl, opts)
	if errors.Is(err, redislock.ErrNotObtained) || (err != nil && errors.Is(obtainCtx.Err(), context.DeadlineExceeded)) {
		config.LogError(logger, "utils", "CompanyLock", "Could not obtain lock for company", lockKey, ErrCompanyLockNotObtained)
		return ErrCompanyLockNotObtained
	} else if err != nil {
		config.LogError(logger, "utils", "CompanyLock", "Error obtaining lock for company", lockKey, err)
		return err
	}
	defer func() {
		// Released with a fresh context: fn may have consumed ctx's deadline.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if rerr := lock.Release(releaseCtx); rerr != nil && !errors.Is(rerr, redislock.ErrLockNotHeld) {
			config.LogError(logger, "utils", "CompanyLock", "Release lock", lockKey, rerr)
		}
	}()

	return fn(ctx)
}
