package vocabulary

// DefaultSeeds are the fixed domain terms that always occupy the first
// vocabulary indices. Order matters: appending is safe, reordering shifts
// dimensions of every stored local vector.
var DefaultSeeds = []string{
	"補助金", "助成金", "給付金", "支援金", "奨励金", "融資", "税制",
	"申請", "締切", "期限", "募集", "公募", "受付", "採択", "採択率",
	"対象", "要件", "条件", "対象者", "資格",
	"中小企業", "小規模事業者", "個人事業主", "スタートアップ", "創業", "起業", "事業承継",
	"設備投資", "研究開発", "人材育成", "雇用", "賃上げ", "省エネ", "脱炭素",
	"販路開拓", "海外展開", "デジタル化", "it", "dx", "ai", "システム", "ツール",
	"ものづくり", "製造業", "農業", "観光", "飲食", "医療", "介護", "建設", "小売", "物流",
	"東京都", "大阪府", "愛知県", "福岡県", "北海道", "全国",
	"上限", "補助率", "万円", "億円", "金額", "簡単", "新着", "人気",
}
