package migrations

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"optionsledger/src/mapper"
	"optionsledger/src/model"
)

// LegacyTradesTable is where earlier deployments stored trades, with Spanish
// column names (ticker, estrategia, prima_recibida, ...).
const LegacyTradesTable = "operaciones"

// importLegacyTrades copies rows of the legacy table into trades through the
// record normalizer. Rows already present (same id) or without a ticker are
// skipped. The legacy table itself is left in place.
func importLegacyTrades(db *gorm.DB) error {
	if !db.Migrator().HasTable(LegacyTradesTable) {
		return nil
	}

	var rows []map[string]interface{}
	if err := db.Table(LegacyTradesTable).Find(&rows).Error; err != nil {
		return fmt.Errorf("read %s: %w", LegacyTradesTable, err)
	}

	imported := 0
	for _, row := range rows {
		for k, v := range row {
			if ts, ok := v.(time.Time); ok {
				row[k] = ts.Format(model.DateLayout)
			}
		}

		trade := mapper.NormalizeRecord(row)
		if trade.TickerSymbol == "" {
			logrus.WithField("row", row).Warn("[migrations] skipping legacy trade without ticker")
			continue
		}

		if trade.ID != "" {
			var count int64
			if err := db.Model(&model.Trade{}).Where("id = ?", trade.ID).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				continue
			}
		}

		if err := db.Create(&trade).Error; err != nil {
			return fmt.Errorf("insert legacy trade %q: %w", trade.ID, err)
		}

		ev := model.NewHistoryEvent(model.HistoryEventCreation, trade, trade.PremiumReceived)
		ev.EventAt = time.Now().UTC()
		if err := db.Create(&ev).Error; err != nil {
			return fmt.Errorf("insert creation event for %q: %w", trade.ID, err)
		}
		imported++
	}

	logrus.WithFields(map[string]interface{}{
		"table":    LegacyTradesTable,
		"rows":     len(rows),
		"imported": imported,
	}).Info("[migrations] legacy trades imported")

	return nil
}
