package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/rl1809/storefront/internal/adapter/handler"
)

// Fires concurrent single-unit adds for one user at a running server and
// checks that none of them were lost.
func main() {
	addr := flag.String("addr", "localhost:50051", "gRPC address of the storefront server")
	totalRequests := flag.Int("n", 100, "number of concurrent add requests")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	client := handler.NewCartServiceClient(conn)

	products, err := client.ListProducts(ctx, &handler.ListProductsRequest{})
	if err != nil {
		log.Fatalf("failed to list products: %v", err)
	}
	if len(products.Products) == 0 {
		log.Fatal("catalogue is empty, start the server with SEED_CATALOG=true")
	}
	productID := products.Products[0].ID

	// Fresh user per run so earlier runs do not skew the count
	userID := "stress-" + uuid.NewString()

	var failCount atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	start := time.Now()

	for i := 0; i < *totalRequests; i++ {
		g.Go(func() error {
			one := 1
			_, err := client.AddItem(gctx, &handler.AddItemRequest{
				RequestID: uuid.NewString(),
				UserID:    userID,
				ProductID: productID,
				Qty:       &one,
			})
			if err != nil {
				failCount.Add(1)
				log.Printf("add failed: %v", err)
			}
			return nil
		})
	}

	g.Wait()
	elapsed := time.Since(start)

	cart, err := client.GetCart(ctx, &handler.GetCartRequest{UserID: userID})
	if err != nil {
		log.Fatalf("failed to read cart: %v", err)
	}

	qty := 0
	for _, line := range cart.Items {
		if line.ProductID == productID {
			qty += line.Qty
		}
	}
	fail := int(failCount.Load())

	// Results
	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("User:             %s\n", userID)
	fmt.Printf("Total Requests:   %d\n", *totalRequests)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Lines In Cart:    %d\n", len(cart.Items))
	fmt.Printf("Final Quantity:   %d\n", qty)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	// Assertions
	if len(cart.Items) == 1 && qty == *totalRequests-fail {
		fmt.Printf("PASS: %d successful adds merged into one line\n", *totalRequests-fail)
	} else {
		fmt.Printf("FAIL: expected one line with qty %d, got %d lines with qty %d\n",
			*totalRequests-fail, len(cart.Items), qty)
	}

	if fail == 0 {
		fmt.Println("PASS: no request failed")
	} else {
		fmt.Printf("FAIL: %d requests failed\n", fail)
	}
}
