// Package catalog resolves denormalized product snapshots for the add-to-cart
// flow from the catalog's MongoDB products collection. The cart only reads
// here; the catalog service owns the data.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

var ErrProductNotFound = errors.New("catalog: product not found")

// Product is the slice of catalog data the cart snapshots at add time.
type Product struct {
	ID       int64   `bson:"_id" json:"id"`
	Name     string  `bson:"name" json:"name"`
	Price    float64 `bson:"price" json:"price"`
	ImageURL string  `bson:"image_url" json:"imageUrl"`
}

type Service struct {
	client   *mongo.Client
	products *mongo.Collection
}

// Connect builds the Mongo client, verifies the connection, and returns a
// Service bound to the products collection.
func Connect(ctx context.Context, uri, dbName string) (*Service, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	clientOptions := options.Client().ApplyURI(uri).SetServerAPIOptions(serverAPI)

	client, err := mongo.Connect(clientOptions)
	if err != nil {
		return nil, fmt.Errorf("creating mongodb client: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	return &Service{
		client:   client,
		products: client.Database(dbName).Collection("products"),
	}, nil
}

// GetProduct looks up one product by id.
func (s *Service) GetProduct(ctx context.Context, productID int64) (*Product, error) {
	var product Product
	err := s.products.FindOne(ctx, bson.M{"_id": productID}).Decode(&product)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching product %d: %w", productID, err)
	}
	return &product, nil
}

func (s *Service) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
