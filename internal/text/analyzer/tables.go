package analyzer

import "github.com/abckeishi-spec/keishi9-sub000/internal/domain/query"

type intentRule struct {
	intent   query.Intent
	keywords []string
}

// intentRules are tested in order; every matching intent is tagged.
var intentRules = []intentRule{
	{query.IntentDeadline, []string{"締切", "締め切り", "〆切", "期限", "いつまで", "募集期間", "受付期間", "deadline"}},
	{query.IntentAmount, []string{"金額", "いくら", "上限", "補助額", "助成額", "補助率", "万円", "億円", "amount"}},
	{query.IntentEligibility, []string{"対象", "要件", "条件", "資格", "申請できる", "使える", "もらえる", "eligible"}},
	{query.IntentIndustry, []string{"業種", "業界", "製造業", "飲食", "農業", "建設", "小売", "医療", "介護", "industry"}},
	{query.IntentPurpose, []string{"目的", "設備投資", "人材育成", "販路開拓", "研究開発", "省エネ", "事業承継", "創業", "purpose"}},
	{query.IntentRegion, []string{"地域", "都道府県", "市区町村", "全国", "県", "府", "region"}},
	{query.IntentRecency, []string{"新着", "最新", "新しい", "今年", "今月", "新規", "latest", "new"}},
	{query.IntentPopularity, []string{"人気", "おすすめ", "注目", "ランキング", "採択率", "popular"}},
	{query.IntentEase, []string{"簡単", "かんたん", "手軽", "初心者", "申請しやすい", "やさしい", "easy"}},
}

type lookup struct {
	surface   string
	canonical string
}

// Lookup tables map surface forms to canonical taxonomy slugs. The first
// matching row wins, so more specific surfaces come first ("東京" before "京都").
var industryTable = []lookup{
	{"it", "it"}, {"dx", "it"}, {"デジタル", "it"}, {"システム", "it"}, {"ソフトウェア", "it"},
	{"製造", "manufacturing"}, {"ものづくり", "manufacturing"}, {"工場", "manufacturing"},
	{"飲食", "food_service"}, {"レストラン", "food_service"}, {"カフェ", "food_service"},
	{"農業", "agriculture"}, {"農家", "agriculture"}, {"漁業", "agriculture"},
	{"建設", "construction"}, {"建築", "construction"}, {"工務店", "construction"},
	{"小売", "retail"}, {"店舗", "retail"}, {"ec", "retail"},
	{"観光", "tourism"}, {"宿泊", "tourism"}, {"旅館", "tourism"},
	{"医療", "healthcare"}, {"クリニック", "healthcare"},
	{"介護", "care"}, {"福祉", "care"},
	{"物流", "logistics"}, {"運輸", "logistics"},
}

var regionTable = []lookup{
	{"全国", "nationwide"},
	{"東京", "tokyo"},
	{"大阪", "osaka"},
	{"神奈川", "kanagawa"}, {"横浜", "kanagawa"},
	{"愛知", "aichi"}, {"名古屋", "aichi"},
	{"福岡", "fukuoka"},
	{"北海道", "hokkaido"}, {"札幌", "hokkaido"},
	{"京都", "kyoto"},
	{"兵庫", "hyogo"}, {"神戸", "hyogo"},
	{"埼玉", "saitama"},
	{"千葉", "chiba"},
	{"宮城", "miyagi"}, {"仙台", "miyagi"},
	{"広島", "hiroshima"},
	{"沖縄", "okinawa"},
}

var purposeTable = []lookup{
	{"it導入", "digitalization"}, {"デジタル化", "digitalization"}, {"dx", "digitalization"},
	{"設備投資", "equipment"}, {"設備", "equipment"}, {"機械", "equipment"},
	{"人材育成", "training"}, {"研修", "training"},
	{"販路開拓", "sales"}, {"販促", "sales"}, {"広告", "sales"},
	{"研究開発", "rnd"}, {"開発", "rnd"},
	{"省エネ", "energy"}, {"脱炭素", "energy"}, {"太陽光", "energy"},
	{"事業承継", "succession"}, {"後継", "succession"},
	{"創業", "startup"}, {"起業", "startup"}, {"開業", "startup"},
	{"雇用", "employment"}, {"採用", "employment"}, {"賃上げ", "employment"},
	{"海外展開", "export"}, {"輸出", "export"},
}
