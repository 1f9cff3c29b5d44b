package migrations

import (
	"gorm.io/gorm"

	"optionsledger/src/model"
)

// backfillTotalPremium fixes rows written before the running total existed.
func backfillTotalPremium(db *gorm.DB) error {
	return db.Model(&model.Trade{}).
		Where("total_premium IS NULL OR total_premium < premium_received").
		Update("total_premium", gorm.Expr("premium_received")).Error
}

func uppercaseTickers(db *gorm.DB) error {
	if err := db.Exec("UPDATE trades SET ticker_symbol = UPPER(TRIM(ticker_symbol))").Error; err != nil {
		return err
	}
	return db.Exec("UPDATE history_events SET ticker_symbol = UPPER(TRIM(ticker_symbol))").Error
}
