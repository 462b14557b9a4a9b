// Package biz 提供 tutor 服务的业务逻辑层。
//
// 摄取路径：
//   - Pipeline: 下载 → 解析 → 符号提取 → 分块 → 嵌入 → 写入，按步骤记录检查点
//   - IngestHandler: 执行 Pipeline 并决定何时将文档标记为 failed
//   - Watchdog: 将长时间停留在 uploading 的文档标记为 failed
//
// 查询路径：
//   - Retriever: 向量 + 词项混合检索
//   - SelectDiverse / Assemble: 来源多样性选择与上下文组装
//   - ChatService / QuestionService: 流式答疑与练习题生成
package biz
