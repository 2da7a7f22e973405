// Package device provides the Device Registry and the Device State Store.
//
// The Registry is the owner-scoped catalogue of devices, device kinds,
// declared actions and pairing codes. The StateStore keeps the current
// logical display state (mode and params) of each device together with
// an append-only history of transitions.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────┐
//	│                          device package                          │
//	│                                                                  │
//	│  ┌──────────────┐   ┌──────────────┐   ┌──────────────────────┐  │
//	│  │   Registry   │   │  StateStore  │   │    SQLRepository     │  │
//	│  │ (registry.go)│──▶│(state_store) │──▶│   (repository.go)    │  │
//	│  │              │   │              │   │                      │  │
//	│  │ • ownership  │   │ • merge      │   │ • sqlite / postgres  │  │
//	│  │ • pairing    │   │ • history    │   │ • set-based reads    │  │
//	│  │ • lastSeen   │   │ • notify     │   │ • atomic claim       │  │
//	│  └──────────────┘   └──────────────┘   └──────────────────────┘  │
//	└──────────────────────────────────────────────────────────────────┘
//
// # Ownership
//
// Every read filters by owner in SQL. Missing and foreign devices both
// yield ErrDeviceNotFound.
//
// # Usage
//
//	repo := device.NewSQLRepository(db.DB, db.Driver())
//	registry := device.NewRegistry(repo, repo, device.DefaultPairingSettings())
//	registry.SetLogger(log)
//
//	states := device.NewStateStore(repo, device.NewSQLStateHistoryRepository(db.DB, db.Driver()))
//	st, err := states.UpsertState(ctx, ownerID, deviceID, device.ModeRGB, device.Params{"r": 255}, ownerID)
//
// # Thread Safety
//
// Registry and StateStore hold no mutable state of their own and are safe
// for concurrent use.
package device
