// Package store 提供 tutor 服务的持久化实现。
//
// 关系数据（课程、教学周、文档、文档块、符号表）通过 GORM 存储，
// 向量保存在 Milvus，原始上传文件保存在 GridFS 或本地目录，
// 摄取检查点与状态事件使用 Redis。
package store
