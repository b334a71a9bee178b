// Package xconf 加载 xdbtune 的配置，基于 koanf 实现。
//
// # 来源与优先级
//
// 配置来自 YAML/JSON 文件（或字节数据），随后叠加以 XDBTUNE_ 为前缀的
// 环境变量。环境变量名去掉前缀后转小写，双下划线表示层级：
//
//	XDBTUNE_TIER=production               -> tier
//	XDBTUNE_MONGO__HOSTS=a:27017,b:27017  -> mongo.hosts（逗号分隔列表）
//	XDBTUNE_QUERY__SLOW_THRESHOLD=250ms   -> query.slow_threshold
//
// # Settings
//
// Load/LoadBytes 将配置反序列化到 Settings。未出现的键保留 DefaultSettings
// 中的默认值，最后执行 Validate。校验失败返回 ErrInvalidSettings。
//
// # 热重载
//
// Watch 基于 fsnotify 监视配置文件所在目录，内置防抖。
// 重载成功时回调收到新的 Settings，失败时收到错误，旧配置保持不变。
// 从字节数据创建的 Config 不支持监视。
//
// # 并发安全
//
// Reload 替换底层 koanf 实例时持写锁，Client/Unmarshal 持读锁。
// Client() 返回的指针在 Reload 后仍可用，但指向旧配置。
package xconf
