package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"barber_booking_echo/internal/config"
	"barber_booking_echo/internal/logger"
	"barber_booking_echo/internal/services"
)

// check_payment fetches a payment from the configured gateway and, with
// -reconcile, runs it through the same reconciliation the webhook uses.
func main() {
	ref := flag.String("ref", "", "Gateway payment reference id (mandatory)")
	reconcile := flag.Bool("reconcile", false, "Apply the payment to the configured store")
	flag.Parse()

	if *ref == "" {
		fmt.Println("Usage: check_payment -ref <payment_reference_id> [-reconcile]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	logger.Init(cfg.Env)

	gateway, err := services.NewGateway(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create gateway client")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	record, err := gateway.FetchPayment(ctx, *ref)
	if err != nil {
		log.Fatal().Err(err).Str("provider", string(gateway.Provider())).Msg("Failed to fetch payment")
	}

	fmt.Printf("Provider:           %s\n", gateway.Provider())
	fmt.Printf("Payment reference:  %s\n", record.PaymentReferenceID)
	fmt.Printf("Status:             %s\n", record.Status)
	fmt.Printf("Amount:             %s\n", record.TransactionAmount.StringFixed(2))
	fmt.Printf("External reference: %s\n", record.ExternalReference)

	if !*reconcile {
		return
	}

	infra, err := services.Bootstrap(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize infrastructure")
	}
	defer infra.Close()

	result := services.NewReconciler(gateway, infra.Store, infra.Publisher).Reconcile(ctx, *ref)
	fmt.Printf("Reconcile:          %s (%s)\n", result.Status, result.Outcome)
	if result.Err != nil {
		fmt.Printf("Error:              %v\n", result.Err)
	}
}
