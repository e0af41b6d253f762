// Package config 提供统一的配置管理：配置文件（YAML、JSON、TOML）叠加环境变量，
// 并在文件变更时自动重新加载。
package config

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Provider 定义配置提供者接口
type Provider interface {
	Get(key string) (any, bool)
	GetString(key string) string
	GetInt(key string) int
	GetFloat(key string) float64
	GetBool(key string) bool
	GetDuration(key string) time.Duration
	GetStringSlice(key string) []string
	GetStringMap(key string) map[string]any
	Set(key string, value any)
	Has(key string) bool
	AllSettings() map[string]any

	// AddChangeListener 注册变更监听器，返回的函数用于注销
	AddChangeListener(listener func(key string)) (remove func())

	// Unmarshal 将 key 下的配置解码到结构体，字段使用 `config` 标签
	Unmarshal(key string, v any) error
}

var _ Provider = &Configuration{}

// Configuration 是配置管理器的实现。
//
// 键以点号分隔层级，例如 "server.read_timeout"。环境变量去掉前缀后转为小写，
// 双下划线表示层级：STRAND_SERVER__READ_TIMEOUT 对应 server.read_timeout。
// 环境变量的优先级高于配置文件。
type Configuration struct {
	data map[string]any

	envPrefix  string
	configFile string
	fileFormat string
	watch      bool
	logger     *zap.Logger

	watcher   *fsnotify.Watcher
	listeners map[int]func(string)
	nextID    int

	mu sync.RWMutex
}

type Option func(*Configuration)

// WithEnvPrefix 设置环境变量前缀，例如 "STRAND_"
func WithEnvPrefix(prefix string) Option {
	return func(c *Configuration) {
		c.envPrefix = prefix
	}
}

// WithConfigFile 设置配置文件路径，并按扩展名检测格式
func WithConfigFile(file string) Option {
	return func(c *Configuration) {
		c.configFile = file
		switch strings.ToLower(filepath.Ext(file)) {
		case ".yaml", ".yml":
			c.fileFormat = "yaml"
		case ".json":
			c.fileFormat = "json"
		case ".toml":
			c.fileFormat = "toml"
		default:
			c.fileFormat = "unknown"
		}
	}
}

// WithFormat 明确设置配置文件格式
func WithFormat(format string) Option {
	return func(c *Configuration) {
		c.fileFormat = format
	}
}

// WithWatch 控制是否监视配置文件变更，默认开启
func WithWatch(watch bool) Option {
	return func(c *Configuration) {
		c.watch = watch
	}
}

// WithLogger 设置记录重新加载失败的日志器
func WithLogger(l *zap.Logger) Option {
	return func(c *Configuration) {
		c.logger = l
	}
}

// New 创建配置管理器并立即加载配置
func New(options ...Option) (*Configuration, error) {
	c := &Configuration{
		data:      make(map[string]any),
		listeners: make(map[int]func(string)),
		watch:     true,
		logger:    zap.NewNop(),
	}
	for _, option := range options {
		option(c)
	}

	if err := c.Load(); err != nil {
		return nil, err
	}

	if c.configFile != "" && c.watch {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("无法创建文件监视器: %w", err)
		}
		if err := watcher.Add(filepath.Dir(c.configFile)); err != nil {
			_ = watcher.Close()
			return nil, fmt.Errorf("无法监视配置文件: %w", err)
		}
		c.watcher = watcher
		go c.watchConfigFile()
	}
	return c, nil
}

// Load 重新读取配置文件和环境变量，替换当前配置
func (c *Configuration) Load() error {
	data := make(map[string]any)
	if c.configFile != "" {
		fileData, err := c.loadConfigFile()
		if err != nil {
			return err
		}
		mergeMaps(data, fileData)
	}
	c.loadEnvironmentVariables(data)

	c.mu.Lock()
	c.data = data
	c.mu.Unlock()
	return nil
}

func (c *Configuration) loadConfigFile() (map[string]any, error) {
	raw, err := os.ReadFile(c.configFile)
	if err != nil {
		if os.IsNotExist(err) {
			// 配置文件不存在，忽略
			return nil, nil
		}
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var config map[string]any
	switch c.fileFormat {
	case "yaml":
		err = yaml.Unmarshal(raw, &config)
	case "json":
		err = json.Unmarshal(raw, &config)
	case "toml":
		err = toml.Unmarshal(raw, &config)
	default:
		return nil, fmt.Errorf("不支持的配置文件格式: %s", c.fileFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("无法解析%s配置文件: %w", strings.ToUpper(c.fileFormat), err)
	}
	return config, nil
}

// mergeMaps 将 src 深度合并到 dst
func mergeMaps(dst, src map[string]any) {
	for k, v := range src {
		srcMap, srcIsMap := v.(map[string]any)
		dstMap, dstIsMap := dst[k].(map[string]any)
		if srcIsMap && dstIsMap {
			mergeMaps(dstMap, srcMap)
			continue
		}
		dst[k] = v
	}
}

func (c *Configuration) loadEnvironmentVariables(data map[string]any) {
	if c.envPrefix == "" {
		return
	}
	for _, env := range os.Environ() {
		name, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(name, c.envPrefix) {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(name, c.envPrefix))
		if key == "" {
			continue
		}
		setPath(data, strings.Split(key, "__"), value)
	}
}

func setPath(data map[string]any, path []string, value any) {
	current := data
	for _, part := range path[:len(path)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}
	current[path[len(path)-1]] = value
}

func (c *Configuration) watchConfigFile() {
	target := filepath.Clean(c.configFile)
	for {
		select {
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || filepath.Clean(event.Name) != target {
				continue
			}
			if err := c.Load(); err != nil {
				c.logger.Warn("重新加载配置文件失败", zap.String("file", c.configFile), zap.Error(err))
				continue
			}
			c.notifyListeners("")
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			c.logger.Warn("配置文件监视错误", zap.Error(err))
		}
	}
}

func (c *Configuration) notifyListeners(key string) {
	c.mu.RLock()
	ids := slices.Sorted(maps.Keys(c.listeners))
	listeners := make([]func(string), 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, c.listeners[id])
	}
	c.mu.RUnlock()

	for _, listener := range listeners {
		listener(key)
	}
}

// Get 按点号分隔的路径查找配置值
func (c *Configuration) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return lookup(c.data, key)
}

func lookup(data map[string]any, key string) (any, bool) {
	if v, ok := data[key]; ok {
		return v, true
	}
	current := data
	parts := strings.Split(key, ".")
	for i, part := range parts {
		v, ok := current[part]
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return v, true
		}
		nested, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		current = nested
	}
	return nil, false
}

func (c *Configuration) GetString(key string) string {
	value, ok := c.Get(key)
	if !ok {
		return ""
	}
	if str, ok := value.(string); ok {
		return str
	}
	return fmt.Sprintf("%v", value)
}

func (c *Configuration) GetInt(key string) int {
	value, ok := c.Get(key)
	if !ok {
		return 0
	}
	switch v := value.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		var i int
		if _, err := fmt.Sscanf(v, "%d", &i); err == nil {
			return i
		}
	}
	return 0
}

func (c *Configuration) GetFloat(key string) float64 {
	value, ok := c.Get(key)
	if !ok {
		return 0
	}
	switch v := value.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		var f float64
		if _, err := fmt.Sscanf(v, "%f", &f); err == nil {
			return f
		}
	}
	return 0
}

func (c *Configuration) GetBool(key string) bool {
	value, ok := c.Get(key)
	if !ok {
		return false
	}
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true") || v == "1"
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	}
	return false
}

// GetDuration 解析 "1m30s" 形式的字符串，数字按秒计
func (c *Configuration) GetDuration(key string) time.Duration {
	value, ok := c.Get(key)
	if !ok {
		return 0
	}
	switch v := value.(type) {
	case time.Duration:
		return v
	case int:
		return time.Duration(v) * time.Second
	case int64:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v * float64(time.Second))
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return 0
}

// GetStringSlice 兼容列表和逗号分隔的字符串
func (c *Configuration) GetStringSlice(key string) []string {
	value, ok := c.Get(key)
	if !ok {
		return nil
	}
	switch v := value.(type) {
	case []string:
		return v
	case []any:
		result := make([]string, len(v))
		for i, val := range v {
			result[i] = fmt.Sprintf("%v", val)
		}
		return result
	case string:
		parts := strings.Split(v, ",")
		for i, p := range parts {
			parts[i] = strings.TrimSpace(p)
		}
		return parts
	}
	return nil
}

func (c *Configuration) GetStringMap(key string) map[string]any {
	value, ok := c.Get(key)
	if !ok {
		return nil
	}
	if m, ok := value.(map[string]any); ok {
		return m
	}
	return nil
}

// Set 设置配置值，点号分隔的键写入嵌套层级
func (c *Configuration) Set(key string, value any) {
	c.mu.Lock()
	setPath(c.data, strings.Split(key, "."), value)
	c.mu.Unlock()

	c.notifyListeners(key)
}

func (c *Configuration) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// AllSettings 返回配置的深拷贝
func (c *Configuration) AllSettings() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return deepCopy(c.data)
}

func deepCopy(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			v = deepCopy(nested)
		}
		out[k] = v
	}
	return out
}

func (c *Configuration) AddChangeListener(listener func(key string)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = listener
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// Unmarshal 将配置解码到结构体。字符串会按需转换为数字、布尔值和时间段，
// 因此环境变量可以覆盖任意类型的字段。
func (c *Configuration) Unmarshal(key string, v any) error {
	value, ok := c.Get(key)
	if !ok {
		return fmt.Errorf("配置键不存在: %s", key)
	}
	return Decode(value, v)
}

// Decode 使用与 Unmarshal 相同的规则解码任意配置值
func Decode(input any, v any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           v,
		TagName:          "config",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("创建解码器失败: %w", err)
	}
	return decoder.Decode(input)
}

// Close 停止监视配置文件
func (c *Configuration) Close() error {
	if c.watcher != nil {
		return c.watcher.Close()
	}
	return nil
}
