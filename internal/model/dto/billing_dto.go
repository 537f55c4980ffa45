package dto

// CheckoutRequest 创建 Paddle 结账
type CheckoutRequest struct {
	Plan string `json:"plan" binding:"required,oneof=basic pro ultimate"`
}

type CheckoutResponse struct {
	TransactionID string `json:"transactionId"`
	CheckoutURL   string `json:"checkoutUrl"`
}

// UploadResponse 参考图上传结果
type UploadResponse struct {
	URL string `json:"url"`
}
