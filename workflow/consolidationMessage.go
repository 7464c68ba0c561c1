package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/mmdatafocus/fluxo_backend/config"
)

// ErrMalformedConsolidationMessage means redelivery cannot help; the message should be acked.
var ErrMalformedConsolidationMessage = errors.New("malformed consolidation message")

// DecodeConsolidationRequest reads a request from a message body, falling back to the
// company_id attribute when the body does not name one.
func DecodeConsolidationRequest(data []byte, attributes map[string]string) (config.ConsolidationRequest, error) {
	var msg config.ConsolidationRequest
	if len(data) > 0 {
		if err := json.Unmarshal(data, &msg); err != nil {
			return msg, fmt.Errorf("%w: %v", ErrMalformedConsolidationMessage, err)
		}
	}
	if msg.CompanyId == 0 {
		if v, ok := attributes["company_id"]; ok {
			id, err := strconv.Atoi(v)
			if err != nil {
				return msg, fmt.Errorf("%w: company_id attribute %q", ErrMalformedConsolidationMessage, v)
			}
			msg.CompanyId = id
		}
	}
	if msg.CompanyId <= 0 {
		return msg, fmt.Errorf("%w: company_id is required", ErrMalformedConsolidationMessage)
	}
	return msg, nil
}

// ProcessConsolidationMessage decodes and runs one consolidation request.
func ProcessConsolidationMessage(ctx context.Context, consolidator *CashFlowConsolidator, data []byte, attributes map[string]string) (config.ConsolidationRequest, error) {
	msg, err := DecodeConsolidationRequest(data, attributes)
	if err != nil {
		return msg, err
	}
	return msg, consolidator.ConsolidateCompany(ctx, msg.CompanyId)
}
