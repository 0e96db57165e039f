package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/pagecache/internal/config"
	"github.com/any-hub/pagecache/internal/console"
	"github.com/any-hub/pagecache/internal/logging"
	"github.com/any-hub/pagecache/internal/origin"
	"github.com/any-hub/pagecache/internal/pagecache"
	"github.com/any-hub/pagecache/internal/server"
	"github.com/any-hub/pagecache/internal/server/routes"
	"github.com/any-hub/pagecache/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.StartupFields("check_config", opts.configPath, cfg)
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 启动顺序：配置 → 日志 → 页面缓存 → 回源 handler → Fiber server，
	// 所有请求共享同一个缓存实例。
	app, err := buildApp(cfg, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化服务失败: %v\n", err)
		return 1
	}

	fields := logging.StartupFields("startup", opts.configPath, cfg)
	fields["listen_port"] = cfg.ListenPort
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(app, cfg.ListenPort, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("pagecache", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 PAGECACHE_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("PAGECACHE_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

// buildApp 组装页面缓存、回源代理、管理控制台与诊断接口。
func buildApp(cfg *config.Config, logger *logrus.Logger) (*fiber.App, error) {
	cache, err := pagecache.New(cfg.CacheOptions())
	if err != nil {
		return nil, err
	}

	client := server.NewOriginClient(cfg)

	var originHandler fiber.Handler
	if cfg.HasOrigin() {
		handler, err := origin.NewHandler(client, logger, cache, cfg.OriginURL)
		if err != nil {
			return nil, err
		}
		originHandler = handler.Handle
	}

	app, err := server.NewApp(server.AppOptions{
		Logger:      logger,
		Cache:       cache,
		ServeCached: cfg.ServeCached,
		Origin:      originHandler,
		ListenPort:  cfg.ListenPort,
	})
	if err != nil {
		return nil, err
	}

	// 管理控制台仅在开发环境挂载，其它环境下访问返回 404。
	if cfg.IsDevelopment() {
		adminConsole, err := console.New(console.Options{
			Cache:       cache,
			Logger:      logger,
			Client:      client,
			SelfTestURL: cfg.EffectiveSelfTestURL(),
		})
		if err != nil {
			return nil, err
		}
		adminConsole.Register(app)
	}

	routes.RegisterStatusRoutes(app, cache, routes.StatusOptions{
		Environment: cfg.Environment,
		ServeCached: cfg.ServeCached,
		AllowPurge:  cfg.IsDevelopment(),
	})
	return app, nil
}

func startHTTPServer(app *fiber.App, port int, logger *logrus.Logger) error {
	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
