package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	logger "github.com/sirupsen/logrus"

	"optionsledger/src/connectors"
	"optionsledger/src/database"
	"optionsledger/src/ledger"
	"optionsledger/src/quotes"
	"optionsledger/src/repository"
	"optionsledger/src/server"
)

var APP_NAME = os.Getenv("APP_NAME")

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	dbCfg := database.GetConfig()
	server.SetupLogger(dbCfg.LogLevel, dbCfg.LogFormat)
	defer handlePanic()

	db, err := database.InitMainDB(dbCfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer database.Close(db)

	ledgerSvc := ledger.NewService(repository.NewTradeRepository(db), repository.NewHistoryRepository(db))
	oracle := connectors.NewAlphaVantageClient(connectors.GetConfig())
	quoteSvc := quotes.NewService(oracle, quotes.GetConfig())

	cfg := server.GetConfig()
	server.StartServer(cfg.Port, server.NewRouter(ledgerSvc, quoteSvc, cfg))
}

func handlePanic() {
	if r := recover(); r != nil {
		logger.WithError(fmt.Errorf("%+v", r)).Error(fmt.Sprintf("Application %s panic", APP_NAME))
		//nolint
		time.Sleep(time.Second * 5)
	}
}
