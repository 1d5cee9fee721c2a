package main

import (
	"fmt"
	"log"
	"os"

	"stringchat/backend/internal/config"
	"stringchat/backend/internal/media"
	"stringchat/backend/internal/storage"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	if len(os.Args) < 2 {
		usage()
	}

	switch os.Args[1] {
	case "reports":
		status := ""
		if len(os.Args) > 2 {
			status = os.Args[2]
		}
		listReports(openStorage(cfg), status)
	case "review":
		if len(os.Args) != 4 {
			fmt.Println("Usage: admin review <report_id> <reviewed|dismissed>")
			os.Exit(1)
		}
		reviewReport(openStorage(cfg), os.Args[2], os.Args[3])
	case "purge-media":
		purgeMedia(cfg)
	default:
		usage()
	}
}

func usage() {
	fmt.Println("Usage: admin <command> [args]")
	fmt.Println("  reports [status]                 list abuse reports")
	fmt.Println("  review <report_id> <status>      set a report's status")
	fmt.Println("  purge-media                      delete expired media once")
	os.Exit(1)
}

func openStorage(cfg *config.Config) *storage.Service {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	return storage.NewStorageService(db, nil) // no redis needed for the CLI
}

func listReports(s *storage.Service, status string) {
	reports, err := s.ListReports(status)
	if err != nil {
		log.Fatalf("failed to list reports: %v", err)
	}
	if len(reports) == 0 {
		fmt.Println("No reports.")
		return
	}
	for _, r := range reports {
		fmt.Printf("%s  [%s]  %s  partner=%s  %s\n",
			r.ID, r.Status, r.Reason, r.ReportedPartner, r.CreatedAt.Format("2006-01-02 15:04"))
		if r.Description != "" {
			fmt.Printf("    %s\n", r.Description)
		}
	}
}

func reviewReport(s *storage.Service, reportID, status string) {
	if status != "reviewed" && status != "dismissed" {
		fmt.Println("Status must be 'reviewed' or 'dismissed'.")
		os.Exit(1)
	}
	if err := s.UpdateReportStatus(reportID, status); err != nil {
		log.Fatalf("failed to update report: %v", err)
	}
	fmt.Printf("Report %s marked %s.\n", reportID, status)
}

func purgeMedia(cfg *config.Config) {
	store, err := media.NewStore(cfg.MediaDir, config.MediaTTL, config.MaxUploadSize)
	if err != nil {
		log.Fatalf("failed to open media store: %v", err)
	}
	removed, err := store.RemoveExpired()
	if err != nil {
		log.Fatalf("purge failed: %v", err)
	}
	fmt.Printf("Removed %d expired media files.\n", removed)
}
