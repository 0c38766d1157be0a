package classifier

func bootstrapSamples() []Sample {
	return []Sample{
		{"winner lottery prize congratulations claim now", "spam"},
		{"newsletter weekly digest unsubscribe", "newsletter"},
		{"sale discount 50% off shop now", "ads"},
		{"john liked your post facebook notification", "social"},
		{"upgrade to premium exclusive offer", "promotions"},
		{"invoice payment receipt order confirmation", "important"},
		{"password reset security verify account", "important"},
		{"free bitcoin crypto double your money", "spam"},
		{"monthly roundup news bulletin", "newsletter"},
		{"flash sale limited time coupon code", "ads"},
		{"new follower twitter mentioned you", "social"},
		{"vip member rewards points cashback", "promotions"},
		{"meeting appointment calendar booking", "important"},
		{"earn money from home work opportunity", "spam"},
		{"daily digest weekly summary update", "newsletter"},
	}
}
