package handler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/storefront/internal/core/service"
)

const cartServiceName = "storefront.cart.v1.CartService"

type ListProductsRequest struct{}

type ListProductsResponse struct {
	Products []ProductHTTPResponse `json:"products"`
}

type GetCartRequest struct {
	UserID string `json:"userId"`
}

type AddItemRequest struct {
	RequestID string `json:"requestId,omitempty"`
	UserID    string `json:"userId"`
	ProductID string `json:"productId"`
	Qty       *int   `json:"qty,omitempty"`
}

type RemoveItemRequest struct {
	UserID    string `json:"userId"`
	ProductID string `json:"productId"`
}

// CartServiceServer is the server API for the cart service. Messages travel
// as JSON under the application/grpc+json content type.
type CartServiceServer interface {
	ListProducts(context.Context, *ListProductsRequest) (*ListProductsResponse, error)
	GetCart(context.Context, *GetCartRequest) (*CartHTTPResponse, error)
	AddItem(context.Context, *AddItemRequest) (*CartHTTPResponse, error)
	RemoveItem(context.Context, *RemoveItemRequest) (*CartHTTPResponse, error)
}

var cartServiceDesc = grpc.ServiceDesc{
	ServiceName: cartServiceName,
	HandlerType: (*CartServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("ListProducts", CartServiceServer.ListProducts),
		unary("GetCart", CartServiceServer.GetCart),
		unary("AddItem", CartServiceServer.AddItem),
		unary("RemoveItem", CartServiceServer.RemoveItem),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "storefront/cart/v1/cart.proto",
}

func RegisterCartServiceServer(s grpc.ServiceRegistrar, srv CartServiceServer) {
	s.RegisterService(&cartServiceDesc, srv)
}

func unary[Req, Resp any](method string, call func(CartServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(CartServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod(method),
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(CartServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func fullMethod(method string) string {
	return "/" + cartServiceName + "/" + method
}

type GRPCHandler struct {
	cartService    *service.CartService
	catalogService *service.CatalogService
	defaultUserID  string
	logger         *zap.Logger
}

func NewGRPCHandler(cartService *service.CartService, catalogService *service.CatalogService, defaultUserID string, logger *zap.Logger) *GRPCHandler {
	return &GRPCHandler{
		cartService:    cartService,
		catalogService: catalogService,
		defaultUserID:  defaultUserID,
		logger:         logger,
	}
}

func (h *GRPCHandler) ListProducts(ctx context.Context, req *ListProductsRequest) (*ListProductsResponse, error) {
	products, err := h.catalogService.ListProducts(ctx)
	if err != nil {
		return nil, h.toStatus(err)
	}

	resp := &ListProductsResponse{Products: make([]ProductHTTPResponse, 0, len(products))}
	for _, p := range products {
		resp.Products = append(resp.Products, toProductResponse(p))
	}
	return resp, nil
}

func (h *GRPCHandler) GetCart(ctx context.Context, req *GetCartRequest) (*CartHTTPResponse, error) {
	view, err := h.cartService.GetCart(ctx, h.userID(req.UserID))
	if err != nil {
		return nil, h.toStatus(err)
	}
	resp := toCartResponse(view)
	return &resp, nil
}

func (h *GRPCHandler) AddItem(ctx context.Context, req *AddItemRequest) (*CartHTTPResponse, error) {
	qty := 1
	if req.Qty != nil {
		qty = *req.Qty
	}

	view, err := h.cartService.AddItemOnce(ctx, req.RequestID, h.userID(req.UserID), req.ProductID, qty)
	if err != nil {
		return nil, h.toStatus(err)
	}
	resp := toCartResponse(view)
	return &resp, nil
}

func (h *GRPCHandler) RemoveItem(ctx context.Context, req *RemoveItemRequest) (*CartHTTPResponse, error) {
	view, err := h.cartService.RemoveItem(ctx, h.userID(req.UserID), req.ProductID)
	if err != nil {
		return nil, h.toStatus(err)
	}
	resp := toCartResponse(view)
	return &resp, nil
}

func (h *GRPCHandler) userID(id string) string {
	if id == "" {
		return h.defaultUserID
	}
	return id
}

func (h *GRPCHandler) toStatus(err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidData):
		return status.Error(codes.InvalidArgument, msgInvalidData)
	case errors.Is(err, service.ErrProductNotFound):
		return status.Error(codes.NotFound, msgProductNotFound)
	case errors.Is(err, service.ErrDuplicateRequest):
		return status.Error(codes.AlreadyExists, msgDuplicate)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return status.FromContextError(err).Err()
	}

	h.logger.Error("rpc failed", zap.Error(err))
	if errors.Is(err, service.ErrStorage) {
		return status.Error(codes.Unavailable, msgInternal)
	}
	return status.Error(codes.Internal, msgInternal)
}

// UnaryLoggingInterceptor logs every unary call with its status code.
func UnaryLoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("grpc request",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("duration", time.Since(start)),
		)
		return resp, err
	}
}

// CartServiceClient calls a CartServiceServer over a client connection.
type CartServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewCartServiceClient(cc grpc.ClientConnInterface) *CartServiceClient {
	return &CartServiceClient{cc: cc}
}

func (c *CartServiceClient) ListProducts(ctx context.Context, in *ListProductsRequest, opts ...grpc.CallOption) (*ListProductsResponse, error) {
	out := new(ListProductsResponse)
	if err := c.invoke(ctx, "ListProducts", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CartServiceClient) GetCart(ctx context.Context, in *GetCartRequest, opts ...grpc.CallOption) (*CartHTTPResponse, error) {
	out := new(CartHTTPResponse)
	if err := c.invoke(ctx, "GetCart", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CartServiceClient) AddItem(ctx context.Context, in *AddItemRequest, opts ...grpc.CallOption) (*CartHTTPResponse, error) {
	out := new(CartHTTPResponse)
	if err := c.invoke(ctx, "AddItem", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CartServiceClient) RemoveItem(ctx context.Context, in *RemoveItemRequest, opts ...grpc.CallOption) (*CartHTTPResponse, error) {
	out := new(CartHTTPResponse)
	if err := c.invoke(ctx, "RemoveItem", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CartServiceClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(jsonCodecName)}, opts...)
	return c.cc.Invoke(ctx, fullMethod(method), in, out, opts...)
}
