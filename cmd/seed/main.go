package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gorm.io/gorm/clause"

	"rentora/internal/database"
	"rentora/internal/domain"
)

// Seeds branches, rooms and the service catalog. Safe to re-run: everything
// is upserted by its natural key.
func main() {
	_ = godotenv.Load()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = "rentora.db"
	}

	db, err := database.Connect(dsn)
	if err != nil {
		log.Fatal("DB connection failed: ", err)
	}

	log.Println("Running migrations...")
	if err := database.Migrate(db); err != nil {
		log.Fatal("Migrate failed: ", err)
	}

	log.Println("Seeding branches...")
	branches := []domain.Branch{
		{Code: "ALM-C", Name: "Almaty Center", Address: "Abay Ave 44, Almaty"},
		{Code: "ALM-E", Name: "Almaty East", Address: "Kulager 12, Almaty"},
		{Code: "AST-1", Name: "Astana Left Bank", Address: "Mangilik El 21, Astana"},
	}
	for i := range branches {
		db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "address"}),
		}).Create(&branches[i])
	}

	log.Println("Seeding rooms...")
	for _, b := range branches {
		for floor := 1; floor <= 3; floor++ {
			for n := 1; n <= 4; n++ {
				number := fmt.Sprintf("%d%02d", floor, n)
				room := domain.Room{
					Code:       fmt.Sprintf("%s-%s", b.Code, number),
					BranchCode: b.Code,
					Number:     number,
					Price:      decimal.NewFromInt(int64(1500000 + floor*250000)),
					Status:     domain.RoomAvailable,
				}
				db.Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "code"}},
					DoUpdates: clause.AssignmentColumns([]string{"price"}),
				}).Create(&room)
			}
		}
	}

	log.Println("Seeding service catalog...")
	services := []domain.ServiceDefinition{
		{Name: "Electricity", Category: domain.ServiceMetered, Unit: "kWh", UnitPrice: decimal.NewFromInt(3500), Protected: true},
		{Name: "Water", Category: domain.ServiceMetered, Unit: "m3", UnitPrice: decimal.NewFromInt(1200), Protected: true},
		{Name: "Security", Category: domain.ServiceFixed, Unit: "month", UnitPrice: decimal.NewFromInt(50000), Protected: true},
		{Name: "Cleaning", Category: domain.ServiceOnDemand, Unit: "visit", UnitPrice: decimal.NewFromInt(25000)},
		{Name: "Parking", Category: domain.ServiceFixed, Unit: "month", UnitPrice: decimal.NewFromInt(40000)},
		{Name: "Laundry", Category: domain.ServiceOnDemand, Unit: "load", UnitPrice: decimal.NewFromInt(8000)},
	}
	for i := range services {
		db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"category", "unit", "unit_price", "protected"}),
		}).Create(&services[i])
	}

	log.Println("Seed complete.")
}
