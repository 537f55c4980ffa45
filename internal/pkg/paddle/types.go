package paddle

import (
	"encoding/json"
	"time"
)

// 关心的回调事件类型
const (
	EventTransactionCompleted = "transaction.completed"
	EventSubscriptionCanceled = "subscription.canceled"
)

type TransactionItem struct {
	PriceID  string
	Quantity int
}

type CreateTransactionRequest struct {
	Items      []TransactionItem
	CustomData map[string]string
}

type Checkout struct {
	URL string
}

type Transaction struct {
	ID       string
	Status   string
	Checkout *Checkout
}

// CheckoutURL 未返回 checkout 时为空
func (t *Transaction) CheckoutURL() string {
	if t.Checkout == nil {
		return ""
	}
	return t.Checkout.URL
}

type Event struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// EventData transaction.* 和 subscription.* 事件 data 的公共部分
type EventData struct {
	ID         string            `json:"id"`
	Status     string            `json:"status"`
	CustomerID string            `json:"customer_id"`
	CustomData map[string]string `json:"custom_data"`
	Items      []struct {
		Price struct {
			ID string `json:"id"`
		} `json:"price"`
		PriceID string `json:"price_id"`
	} `json:"items"`
}

// PriceIDs 兼容 items[].price.id 与 items[].price_id 两种形态
func (d *EventData) PriceIDs() []string {
	ids := make([]string, 0, len(d.Items))
	for _, item := range d.Items {
		switch {
		case item.Price.ID != "":
			ids = append(ids, item.Price.ID)
		case item.PriceID != "":
			ids = append(ids, item.PriceID)
		}
	}
	return ids
}

// ParseData 解码事件 data
func (e *Event) ParseData() (*EventData, error) {
	var data EventData
	if len(e.Data) == 0 {
		return &data, nil
	}
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, err
	}
	return &data, nil
}
