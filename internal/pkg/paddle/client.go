// Package paddle 封装 Paddle Billing 的 checkout 创建与 webhook 校验
package paddle

import (
	"context"
	"errors"
	"fmt"

	paddlesdk "github.com/PaddleHQ/paddle-go-sdk/v4"
)

var ErrRequestFailed = errors.New("paddle: request failed")

type Client struct {
	sdk *paddlesdk.SDK
}

// NewClient baseURL 为空时使用生产环境
func NewClient(apiKey, baseURL string) (*Client, error) {
	if baseURL == "" {
		baseURL = paddlesdk.ProductionBaseURL
	}
	sdk, err := paddlesdk.New(apiKey, paddlesdk.WithBaseURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("create paddle client: %w", err)
	}
	return &Client{sdk: sdk}, nil
}

// CreateTransaction 创建一笔待支付交易，返回的 checkout url 交给前端打开
func (c *Client) CreateTransaction(ctx context.Context, req CreateTransactionRequest) (*Transaction, error) {
	items := make([]paddlesdk.CreateTransactionItems, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, *paddlesdk.NewCreateTransactionItemsTransactionItemFromCatalog(&paddlesdk.TransactionItemFromCatalog{
			PriceID:  item.PriceID,
			Quantity: item.Quantity,
		}))
	}

	var customData paddlesdk.CustomData
	if len(req.CustomData) > 0 {
		customData = make(paddlesdk.CustomData, len(req.CustomData))
		for k, v := range req.CustomData {
			customData[k] = v
		}
	}

	txn, err := c.sdk.CreateTransaction(ctx, &paddlesdk.CreateTransactionRequest{
		Items:      items,
		CustomData: customData,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}

	out := &Transaction{ID: txn.ID, Status: string(txn.Status)}
	if txn.Checkout != nil && txn.Checkout.URL != nil {
		out.Checkout = &Checkout{URL: *txn.Checkout.URL}
	}
	return out, nil
}
