package internal

const (
	// 输出根目录名称
	DefaultRootName = "SokkaCorp"

	// 索引快照文件名
	DefaultIndexFileName = "processed-files.json"

	// 运行历史数据库文件名
	DefaultHistoryFileName = "history.db"

	// 索引快照使用的摘要算法，同一个索引的生命周期内不可更换
	DigestAlgorithm = "sha256"

	// 压缩包最大嵌套深度
	DefaultMaxZipDepth = 5

	// 压缩包解压后的总大小上限 (1 GiB)
	DefaultMaxUncompressedBytes int64 = 1 << 30

	// 重建索引时的哈希工作线程数
	DefaultWorkers = 1

	// 缓冲区大小
	DefaultBufferSize = 1000
)
