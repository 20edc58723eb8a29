package order

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
)

// MethodGetOrderDetails is the full gRPC method name served by the orders service.
const MethodGetOrderDetails = "/orders.OrdersService/GetOrderDetails"

// GRPCGateway is an orders gateway backed by gRPC. Requests and responses are
// google.protobuf.Struct messages.
type GRPCGateway struct {
	conn grpc.ClientConnInterface
}

// NewGRPCGateway creates an orders gateway backed by gRPC.
func NewGRPCGateway(conn grpc.ClientConnInterface) *GRPCGateway {
	if conn == nil {
		return nil
	}
	return &GRPCGateway{conn: conn}
}

// GetOrderDetails fetches the dispatch facts of an order from the orders service.
func (g *GRPCGateway) GetOrderDetails(ctx context.Context, orderID uuid.UUID) (domain.OrderDetails, error) {
	req, err := structpb.NewStruct(map[string]any{"id": orderID.String()})
	if err != nil {
		return domain.OrderDetails{}, fmt.Errorf("order gateway: build request: %w", err)
	}
	resp := &structpb.Struct{}
	if err := g.conn.Invoke(ctx, MethodGetOrderDetails, req, resp); err != nil {
		if status.Code(err) == codes.NotFound {
			return domain.OrderDetails{}, fmt.Errorf("order gateway: order %s: %w", orderID, apperr.ErrNotFound)
		}
		return domain.OrderDetails{}, fmt.Errorf("order gateway: GetOrderDetails: %w", err)
	}
	return mapOrder(orderID, resp)
}

func mapOrder(orderID uuid.UUID, s *structpb.Struct) (domain.OrderDetails, error) {
	f := s.GetFields()
	out := domain.OrderDetails{
		OrderID:     orderID,
		DeliveryFee: f["delivery_fee"].GetNumberValue(),
	}

	var err error
	if out.RestaurantID, err = uuid.Parse(f["restaurant_id"].GetStringValue()); err != nil {
		return domain.OrderDetails{}, fmt.Errorf("order gateway: restaurant_id: %w: %w", apperr.ErrInternal, err)
	}
	if out.CustomerID, err = uuid.Parse(f["customer_id"].GetStringValue()); err != nil {
		return domain.OrderDetails{}, fmt.Errorf("order gateway: customer_id: %w: %w", apperr.ErrInternal, err)
	}
	if out.PickupAddress, err = f["pickup_address"].GetStructValue().MarshalJSON(); err != nil {
		return domain.OrderDetails{}, fmt.Errorf("order gateway: pickup_address: %w: %w", apperr.ErrInternal, err)
	}
	if out.DeliveryAddress, err = f["delivery_address"].GetStructValue().MarshalJSON(); err != nil {
		return domain.OrderDetails{}, fmt.Errorf("order gateway: delivery_address: %w: %w", apperr.ErrInternal, err)
	}
	return out, nil
}
