package mapper

import (
	"encoding/json"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vibast-solutions/ms-go-razorpay/app/entity"
	"github.com/vibast-solutions/ms-go-razorpay/app/types"
)

func OrderToResponse(item *entity.Order) *types.OrderResponse {
	if item == nil {
		return nil
	}

	return &types.OrderResponse{
		OrderID:       item.ProviderOrderID,
		Receipt:       item.Receipt,
		AmountInPaise: item.AmountPaise,
		Currency:      item.Currency,
		Status:        item.Status,
		PaymentID:     item.ProviderPaymentID,
		LastEventID:   item.LastEventID,
		FailureReason: item.FailureReason,
		CreatedAt:     item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// ToStruct converts any JSON-encodable value into a protobuf Struct using its
// JSON field names.
func ToStruct(v interface{}) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return structpb.NewStruct(fields)
}

// StructToJSON renders a protobuf Struct as the JSON object it models.
func StructToJSON(s *structpb.Struct) ([]byte, error) {
	if s == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s.AsMap())
}
