// Package queue 投递摄取事件。
//
// 两种实现共享同一个 EventHandler：
//   - JetStream：持久化、跨实例、按 MaxDeliver 重投
//   - Local：进程内 worker 池，单实例部署与开发环境使用
package queue
