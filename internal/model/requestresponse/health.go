package requestresponse

// HealthMinimalResponse : краткий ответ для балансировщика
type HealthMinimalResponse struct {
	Status string `json:"status" example:"healthy"`
}
