// Package bootstrap wires the reservation core from configuration. The api
// and cron binaries share it.
package bootstrap

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/arena-backend/internal/eventbookings"
	"github.com/angelmondragon/arena-backend/internal/gateway"
	"github.com/angelmondragon/arena-backend/internal/ledger"
	"github.com/angelmondragon/arena-backend/internal/locks"
	"github.com/angelmondragon/arena-backend/internal/payments"
	"github.com/angelmondragon/arena-backend/internal/reservations"
	"github.com/angelmondragon/arena-backend/internal/settlement"
	"github.com/angelmondragon/arena-backend/internal/shoporders"
	"github.com/angelmondragon/arena-backend/internal/users"
	"github.com/angelmondragon/arena-backend/internal/venuebookings"
	"github.com/angelmondragon/arena-backend/internal/wallet"
	"github.com/angelmondragon/arena-backend/pkg/config"
	"github.com/angelmondragon/arena-backend/pkg/db"
	"github.com/angelmondragon/arena-backend/pkg/logger"
	"github.com/angelmondragon/arena-backend/pkg/metrics"
	"github.com/angelmondragon/arena-backend/pkg/outbox"
	"github.com/angelmondragon/arena-backend/pkg/retry"
)

type Options struct {
	Config     *config.Config
	DB         *db.Client
	Logger     *logger.Logger
	Registerer prometheus.Registerer
	// Gateway replaces the HTTP gateway client when set.
	Gateway payments.Gateway
}

// Core holds the long-lived services of one process.
type Core struct {
	Users         *users.Repository
	Directory     *users.Directory
	Wallet        wallet.Service
	TopUps        *wallet.TopUps
	Ledger        ledger.Service
	Reservations  reservations.Repository
	Settlement    *settlement.Handler
	Payments      *payments.Service
	VenueBookings *venuebookings.Service
	EventBookings *eventbookings.Service
	ShopOrders    *shoporders.Service
	Metrics       *metrics.SettlementMetrics
}

func Build(opts Options) (*Core, error) {
	if opts.Config == nil || opts.DB == nil {
		return nil, fmt.Errorf("config and db are required")
	}
	logg := opts.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	conn := opts.DB.DB()
	settleMetrics := metrics.NewSettlementMetrics(opts.Registerer)

	registry, err := locks.NewRegistry(
		locks.NewVenueSlots(),
		locks.NewEventSeats(logg, settleMetrics),
		locks.NewShopInventory(),
	)
	if err != nil {
		return nil, err
	}

	usersRepo := users.NewRepository(conn)
	directory, err := users.NewDirectory(usersRepo)
	if err != nil {
		return nil, err
	}
	walletSvc, err := wallet.NewService(wallet.NewRepository(conn))
	if err != nil {
		return nil, err
	}
	topups, err := wallet.NewTopUps(opts.DB, walletSvc)
	if err != nil {
		return nil, err
	}
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	if err != nil {
		return nil, err
	}
	reservationRepo := reservations.NewRepository(conn)
	creator, err := reservations.NewCreator(opts.DB, reservationRepo, registry, logg)
	if err != nil {
		return nil, err
	}

	handler, err := settlement.NewHandler(settlement.Deps{
		DB:           opts.DB,
		Reservations: reservationRepo,
		Locks:        registry,
		Ledger:       ledgerSvc,
		Outbox:       outbox.NewService(outbox.NewRepository(), logg),
		Metrics:      settleMetrics,
		Logger:       logg,
		Policy: retry.Policy{
			MaxAttempts: opts.Config.Settlement.MaxAttempts,
			Delay:       opts.Config.Settlement.RetryDelay,
		},
	})
	if err != nil {
		return nil, err
	}

	gw := opts.Gateway
	if gw == nil {
		gw = gateway.NewClient(opts.Config.Gateway)
	}
	paymentSvc, err := payments.NewService(payments.Deps{
		DB:           opts.DB,
		Reservations: reservationRepo,
		Wallet:       walletSvc,
		Ledger:       ledgerSvc,
		Gateway:      gw,
		Settlement:   handler,
		Logger:       logg,
	})
	if err != nil {
		return nil, err
	}

	venueSvc, err := venuebookings.NewService(venuebookings.NewRepository(conn), directory, creator, opts.Config.Pricing.GSTMultiplier())
	if err != nil {
		return nil, err
	}
	eventSvc, err := eventbookings.NewService(conn, directory, creator)
	if err != nil {
		return nil, err
	}
	shopSvc, err := shoporders.NewService(conn, directory, creator)
	if err != nil {
		return nil, err
	}

	return &Core{
		Users:         usersRepo,
		Directory:     directory,
		Wallet:        walletSvc,
		TopUps:        topups,
		Ledger:        ledgerSvc,
		Reservations:  reservationRepo,
		Settlement:    handler,
		Payments:      paymentSvc,
		VenueBookings: venueSvc,
		EventBookings: eventSvc,
		ShopOrders:    shopSvc,
		Metrics:       settleMetrics,
	}, nil
}
