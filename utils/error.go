package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

var ErrorCompanyRequired = errors.New("company id is required")
