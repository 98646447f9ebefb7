package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"sort"
	"strconv"
	"time"

	"checkout-service/internal/models"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/add_item.lua
var addItemScript string

//go:embed scripts/set_item.lua
var setItemScript string

type Client struct {
	rdb       *redis.Client
	addScript *redis.Script
	setScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:       rdb,
		addScript: redis.NewScript(addItemScript),
		setScript: redis.NewScript(setItemScript),
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func cartKey(userID int64) string {
	return fmt.Sprintf("cart:%d", userID)
}

// AddCartItem atomically adds quantity to a cart line via Lua script.
// Returns the resulting line quantity (0 means the line was removed).
func (c *Client) AddCartItem(ctx context.Context, userID, productID int64, quantity int) (int, error) {
	result, err := c.addScript.Run(ctx, c.rdb, []string{cartKey(userID)}, productID, quantity).Result()
	if err != nil {
		return 0, fmt.Errorf("add cart item script failed: %w", err)
	}

	qty, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected script result type")
	}
	return int(qty), nil
}

// SetCartItem atomically sets an absolute quantity for a cart line.
// Zero or negative removes the line.
func (c *Client) SetCartItem(ctx context.Context, userID, productID int64, quantity int) error {
	_, err := c.setScript.Run(ctx, c.rdb, []string{cartKey(userID)}, productID, quantity).Result()
	if err != nil {
		return fmt.Errorf("set cart item script failed: %w", err)
	}
	return nil
}

// RemoveCartItem removes a single line from the cart
func (c *Client) RemoveCartItem(ctx context.Context, userID, productID int64) error {
	return c.rdb.HDel(ctx, cartKey(userID), strconv.FormatInt(productID, 10)).Err()
}

// GetCart retrieves the user's cart. An absent key is an empty cart.
func (c *Client) GetCart(ctx context.Context, userID int64) (*models.Cart, error) {
	result, err := c.rdb.HGetAll(ctx, cartKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}

	cart := &models.Cart{UserID: userID, Items: make([]models.CartItem, 0, len(result))}
	for field, value := range result {
		productID, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			continue
		}
		quantity, err := strconv.Atoi(value)
		if err != nil || quantity <= 0 {
			continue
		}
		cart.Items = append(cart.Items, models.CartItem{ProductID: productID, Quantity: quantity})
	}

	// hash iteration order is random; keep the API output stable
	sort.Slice(cart.Items, func(i, j int) bool {
		return cart.Items[i].ProductID < cart.Items[j].ProductID
	})

	return cart, nil
}

// ClearCart destroys the user's cart
func (c *Client) ClearCart(ctx context.Context, userID int64) error {
	return c.rdb.Del(ctx, cartKey(userID)).Err()
}
