package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/farmanova/api/internal/config"
	"github.com/farmanova/api/internal/erp"
	"github.com/farmanova/api/internal/router"
	"github.com/farmanova/api/internal/wizard"
	"github.com/farmanova/api/internal/ws"
)

func main() {
	cfg := config.Load()

	erpClient := erp.NewClient(cfg.ERPBaseURL)

	hub := ws.NewHub()
	go hub.Run()

	sessions := wizard.NewStore()
	ctrl := wizard.NewController(erpClient, erpClient, erpClient, hub)

	r := router.New(cfg, erpClient, sessions, ctrl, hub)

	log.Printf("Starting server on :%s (ERP at %s)", cfg.Port, cfg.ERPBaseURL)
	if err := http.ListenAndServe(fmt.Sprintf(":%s", cfg.Port), r); err != nil {
		log.Fatal(err)
	}
}
