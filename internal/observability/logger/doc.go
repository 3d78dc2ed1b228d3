// Package logger provee un logger Zap singleton con scoping por contexto.
//
// # Decisiones
//
//   - Singleton: una sola instancia global inicializada con Init().
//   - Context scoping: cada request lleva su propio logger con request_id,
//     method y path, inyectado por el middleware de logging.
//   - Entornos: "dev" usa consola con colores, "prod" usa JSON.
//
// # Uso
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, ServiceName: "learnhabit"})
//	defer logger.Sync()
//
//	log := logger.From(ctx).With(logger.Op("SendPIN"))
//	log.Info("pin issued", logger.Email(email))
package logger
