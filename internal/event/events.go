package event

const (
	TopicProductCreated = "product.created"
	TopicProductUpdated = "product.updated"
	TopicProductRated   = "product.rated"
)

// Topics lists every topic the service publishes through the outbox.
var Topics = []string{TopicProductCreated, TopicProductUpdated, TopicProductRated}

type ProductCreatedEvent struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Category  string  `json:"category"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Rating    float64 `json:"rating"`
	CreatedBy string  `json:"created_by"`
}

type ProductUpdatedEvent struct {
	ProductID string   `json:"product_id"`
	Fields    []string `json:"fields"`
	Version   int64    `json:"version"`
	UpdatedBy string   `json:"updated_by"`
}

type ProductRatedEvent struct {
	ProductID    string  `json:"product_id"`
	Score        float64 `json:"score"`
	Rating       float64 `json:"rating"`
	RatingsCount int     `json:"ratings_count"`
	RatedBy      string  `json:"rated_by"`
}
