package model

// Product 积分套餐
type Product struct {
	Name     string // 套餐名称
	Price    int64  // 法币价格（分）
	Integral int64  // 到账积分
}

// Products 产品目录（只读配置，运行期不变更）
var Products = map[int]Product{
	1: {Name: "基础版", Price: 1000, Integral: 100},
	2: {Name: "高级版", Price: 3000, Integral: 500},
	3: {Name: "尊享版", Price: 10000, Integral: 2000},
}

// GetProduct 按产品类型查找套餐
func GetProduct(productType int) (Product, bool) {
	p, ok := Products[productType]
	return p, ok
}
