// Package config holds the environment-driven configuration of the realtime
// server.
package config

import "time"

type Config struct {
	Addr           string        `env:"ADDR,default=:4000"`
	JWTSecret      string        `env:"JWT_SECRET,required=true"`
	BadgerFilepath string        `env:"BADGER_FILEPATH,required=true"`
	AmqpURL        string        `env:"AMQP_URL"`
	LogLevel       string        `env:"LOG_LEVEL,default=INFO"`
	SendBufferSize int           `env:"SEND_BUFFER_SIZE,default=192"`
	WriteWait      time.Duration `env:"WRITE_WAIT,default=10s"`
	PongWait       time.Duration `env:"PONG_WAIT,default=60s"`
	ShutdownWait   time.Duration `env:"SHUTDOWN_WAIT,default=5s"`
}
