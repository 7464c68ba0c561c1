package utils

import (
	"context"
	"errors"

	"github.com/mmdatafocus/fluxo_backend/config"
	"gorm.io/gorm"
)

// fetch one company scoped row by id
// (ErrorRecordNotFound when missing or owned by another company)
func FetchModel[T any](ctx context.Context, companyId int, id int) (*T, error) {
	db := config.GetDB()
	var result T
	err := db.WithContext(ctx).Where("empresa_id = ?", companyId).First(&result, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrorRecordNotFound
	} else if err != nil {
		return nil, err
	}
	return &result, nil
}

// fetch all company scoped rows ordered by id
func FetchAllModels[T any](ctx context.Context, companyId int) ([]*T, error) {
	db := config.GetDB()
	var results []*T
	if err := db.WithContext(ctx).Where("empresa_id = ?", companyId).Order("id").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func ResourceCountWhere[T any](ctx context.Context, companyId int, cond string, args ...interface{}) (int64, error) {
	db := config.GetDB()
	var count int64
	err := db.WithContext(ctx).Model(new(T)).Where("empresa_id = ?", companyId).Where(cond, args...).Count(&count).Error
	return count, err
}

func ValidateResourceId[T any](ctx context.Context, companyId int, id interface{}) error {
	count, err := ResourceCountWhere[T](ctx, companyId, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}
	return nil
}
