// Package parser 将上传的课程资料转换为保留标题与 LaTeX 公式的 markdown。
//
// PDF、Office 文档交给外部 LlamaParse 服务；HTML 在进程内转换；
// markdown 与纯文本原样使用。Router 按文件扩展名分发。
package parser
