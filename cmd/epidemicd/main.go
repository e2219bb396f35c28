package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AmoghJohri/Epidemic-Modeling/internal/simd"
	"github.com/AmoghJohri/Epidemic-Modeling/pkg/config"
	"github.com/AmoghJohri/Epidemic-Modeling/pkg/logger"
)

func main() {
	var configPath string
	var grpcAddr string
	var httpAddr string
	var logLevel string

	flag.StringVar(&configPath, "config", "", "config file (defaults built in when empty)")
	flag.StringVar(&grpcAddr, "grpc-addr", "", "gRPC listen address (overrides server.grpc_addr)")
	flag.StringVar(&httpAddr, "http-addr", "", "HTTP listen address (overrides server.http_addr)")
	flag.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error("failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}
	if logLevel == "" {
		logLevel = cfg.LogLevel
	}
	if grpcAddr == "" {
		grpcAddr = cfg.Server.GRPCAddr
	}
	if httpAddr == "" {
		httpAddr = cfg.Server.HTTPAddr
	}
	logger.SetDefault(logger.NewWithFormat(cfg.LogFormat, logLevel, os.Stdout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	store := simd.NewRunStore()
	executor := simd.NewRunExecutor(store, cfg)

	// TODO: Configure gRPC server security (e.g., TLS, authentication, rate limiting)
	// before using this service in a production environment.
	grpcServer, healthServer := simd.NewGRPCServer(executor)

	var httpSrv *http.Server
	if httpAddr != "" {
		httpSrv = &http.Server{
			Addr:              httpAddr,
			Handler:           simd.NewHTTPServer(executor).Handler(),
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
			MaxHeaderBytes:    1 << 20,
		}
	}

	if grpcAddr != "" {
		grpcLis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			logger.Error("failed to listen for gRPC", "addr", grpcAddr, "error", err)
			stop()
			os.Exit(1)
		}
		go func() {
			logger.Info("gRPC server listening", "addr", grpcAddr)
			if err := grpcServer.Serve(grpcLis); err != nil {
				logger.Error("gRPC server error", "error", err)
				stop()
			}
		}()
	}

	if httpSrv != nil {
		go func() {
			logger.Info("HTTP server listening", "addr", httpAddr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "error", err)
				stop()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutdown requested")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	healthServer.Shutdown()
	grpcServer.GracefulStop()
	if httpSrv != nil {
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP shutdown error", "error", err)
		}
	}

	executor.StopAll()
	executor.Wait()
	logger.Info("shutdown complete")
}
