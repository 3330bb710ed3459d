// Package mongo opens MongoDB connections with the official v2 driver.
//
// entitlekit uses MongoDB only as an optional audit trail backend
// (pkg/store/mongostore). New retries the initial ping; NewWithDatabase also
// selects Config.Database:
//
//	db, err := mongo.NewWithDatabase(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	storage, err := mongostore.NewAuditStorage(ctx, db)
package mongo
