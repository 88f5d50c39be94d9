package config

import (
	"os"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/utrading/utrading-market-dashboard/pkg/logger"
)

type Server struct {
	Addr              string        `toml:"addr"`                // HTTP/WebSocket 监听地址
	WriteWait         time.Duration `toml:"write_wait"`          // 客户端写超时
	PongWait          time.Duration `toml:"pong_wait"`           // 客户端读超时
	SendBuffer        int           `toml:"send_buffer"`         // 每连接发送缓冲大小
	BroadcastPoolSize int           `toml:"broadcast_pool_size"` // 广播协程池大小
}

type MySQL struct {
	DSN                string   `toml:"dsn"`
	SlaveAddr          []string `toml:"slave_addr"`
	MaxIdleConnections int      `toml:"max_idle_connections"`
	MaxOpenConnections int      `toml:"max_open_connections"`
	SetConnMaxLifetime int      `toml:"set_conn_max_lifetime"`
	SetConnMaxIdleTime int      `toml:"set_conn_max_idle_time"`
	ProxyEnabled       bool     `toml:"proxy_enabled"`
	ProxyAddr          string   `toml:"proxy_addr"`
}

type NATS struct {
	Endpoint string `toml:"endpoint"`
}

type Logger struct {
	Level      string `toml:"level"`
	MaxSize    int    `toml:"max_size"`
	MaxBackups int    `toml:"max_backups"`
	MaxAge     int    `toml:"max_age"`
	Compress   bool   `toml:"compress"`
	Console    bool   `toml:"console"`
}

type Alert struct {
	QueueSize        int           `toml:"queue_size"`        // 事件队列大小
	RetentionDays    int           `toml:"retention_days"`    // 历史记录保留天数
	MaxHistoryRows   int64         `toml:"max_history_rows"`  // 历史记录数量上限
	DispatchTimeout  time.Duration `toml:"dispatch_timeout"`  // 单渠道投递超时
	LargeLiqValue    float64       `toml:"large_liq_value"`   // 大额清算阈值（USD）
}

type Feeds struct {
	TickerURL         string        `toml:"ticker_url"`         // 行情流地址
	LiquidationURL    string        `toml:"liquidation_url"`    // 清算流地址
	FundingURL        string        `toml:"funding_url"`        // 资金费率流地址
	ReconnectInterval time.Duration `toml:"reconnect_interval"` // 固定重连间隔
	SentimentURL      string        `toml:"sentiment_url"`      // 恐惧贪婪指数接口
	SentimentPoll     time.Duration `toml:"sentiment_poll"`     // 情绪轮询间隔
	StablecoinURL     string        `toml:"stablecoin_url"`     // 稳定币行情接口
	StablecoinPoll    time.Duration `toml:"stablecoin_poll"`    // 稳定币轮询间隔
	OpenInterestURL   string        `toml:"open_interest_url"`  // 持仓量接口（按符号查询）
	OpenInterestPoll  time.Duration `toml:"open_interest_poll"` // 持仓量轮询间隔
}

type Notify struct {
	SMTPAddr          string        `toml:"smtp_addr"`           // SMTP 服务器 host:port
	SMTPUser          string        `toml:"smtp_user"`           // SMTP 用户名（发件人）
	SMTPPassword      string        `toml:"smtp_password"`       // SMTP 密码
	SMSGatewayURL     string        `toml:"sms_gateway_url"`     // 短信网关接口
	SMSAPIKey         string        `toml:"sms_api_key"`
	PushSubjectPrefix string        `toml:"push_subject_prefix"` // NATS push 主题前缀
	HTTPTimeout       time.Duration `toml:"http_timeout"`        // webhook/sms 请求超时
}

type Config struct {
	Server Server `toml:"server"`
	MySQL  MySQL  `toml:"mysql"`
	NATS   NATS   `toml:"nats"`
	Logger Logger `toml:"log"`
	Alert  Alert  `toml:"alert"`
	Feeds  Feeds  `toml:"feeds"`
	Notify Notify `toml:"notify"`
}

var (
	cfg         *Config
	cfgPath     string
	cfgLock     sync.RWMutex
	lastModTime time.Time
	stopChan    chan struct{}
)

func Default() *Config {
	return &Config{
		Server: Server{
			Addr:              "0.0.0.0:16900",
			WriteWait:         10 * time.Second,
			PongWait:          60 * time.Second,
			SendBuffer:        256,
			BroadcastPoolSize: 1000,
		},
		MySQL: MySQL{
			DSN:                "root:password@tcp(localhost:3306)/utrading?charset=utf8mb4&parseTime=True&loc=Local",
			SlaveAddr:          []string{},
			MaxIdleConnections: 16,
			MaxOpenConnections: 64,
			SetConnMaxLifetime: 7200,
			SetConnMaxIdleTime: 3600,
			ProxyEnabled:       false,
			ProxyAddr:          "127.0.0.1:7890",
		},
		NATS: NATS{
			Endpoint: "nats://localhost:4222",
		},
		Logger: Logger{
			Level:      "info",
			MaxSize:    10,
			MaxBackups: 60,
			MaxAge:     7,
			Compress:   false,
			Console:    false,
		},
		Alert: Alert{
			QueueSize:        10000,
			RetentionDays:    30,
			MaxHistoryRows:   500000,
			DispatchTimeout:  15 * time.Second,
			LargeLiqValue:    1000000,
		},
		Feeds: Feeds{
			TickerURL:         "wss://stream.binance.com:9443/ws/!ticker@arr",
			LiquidationURL:    "wss://fstream.binance.com/ws/!forceOrder@arr",
			FundingURL:        "wss://fstream.binance.com/ws/!markPrice@arr",
			ReconnectInterval: 5 * time.Second,
			SentimentURL:      "https://api.alternative.me/fng/",
			SentimentPoll:     5 * time.Minute,
			StablecoinURL:     "https://api.coingecko.com/api/v3/simple/price?ids=tether,usd-coin,binance-usd,dai&vs_currencies=usd&include_market_cap=true",
			StablecoinPoll:    time.Minute,
			OpenInterestURL:   "https://fapi.binance.com/fapi/v1/openInterest",
			OpenInterestPoll:  time.Minute,
		},
		Notify: Notify{
			SMTPAddr:          "localhost:25",
			SMTPUser:          "alerts@utrading.io",
			PushSubjectPrefix: "push.alert",
			HTTPTimeout:       10 * time.Second,
		},
	}
}

func Load(path string) error {
	c := Default()
	if _, err := toml.DecodeFile(path, c); err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	cfgLock.Lock()
	defer cfgLock.Unlock()
	cfg = c
	cfgPath = path
	lastModTime = info.ModTime()

	return nil
}

func Get() *Config {
	cfgLock.RLock()
	defer cfgLock.RUnlock()
	return cfg
}

// Init 初始化配置并启动定期重载（默认10秒）
func Init(path string) error {
	return InitWithInterval(path, 10*time.Second)
}

// InitWithInterval 初始化配置并指定重载间隔
func InitWithInterval(path string, interval time.Duration) error {
	if err := Load(path); err != nil {
		return err
	}

	stopChan = make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				reloadIfNeeded()
			case <-stopChan:
				return
			}
		}
	}()

	return nil
}

// Stop 停止配置重载
func Stop() {
	if stopChan != nil {
		close(stopChan)
	}
}

// reloadIfNeeded 仅在文件修改时重载
func reloadIfNeeded() {
	cfgLock.RLock()
	path := cfgPath
	lastMod := lastModTime
	cfgLock.RUnlock()

	if path == "" {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		logger.Error().Err(err).Msg("config stat failed")
		return
	}

	if info.ModTime().After(lastMod) {
		if err = Load(path); err != nil {
			logger.Error().Err(err).Msg("config reload failed")
		} else {
			logger.Info().Msg("config reloaded")
		}
	}
}
