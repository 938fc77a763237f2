package storage

// DefaultCatalog is written to an empty store on first start.
func DefaultCatalog() []Product {
	return []Product{
		{
			ID:          "1",
			Name:        "Quantum Wireless Headphones",
			Price:       299.99,
			Category:    "Electronics",
			Stock:       25,
			Image:       "/images/headphones.jpg",
			Description: "Advanced quantum-powered wireless headphones with neural connectivity.",
		},
		{
			ID:          "2",
			Name:        "HoloDisplay Monitor",
			Price:       1299.99,
			Category:    "Electronics",
			Stock:       10,
			Image:       "/images/monitor.jpg",
			Description: "Futuristic holographic display with 4K resolution and AR capabilities.",
		},
		{
			ID:          "3",
			Name:        "Neural Interface Keyboard",
			Price:       899.99,
			Category:    "Electronics",
			Stock:       15,
			Image:       "/images/keyboard.jpg",
			Description: "Mind-controlled keyboard with haptic feedback and AI prediction.",
		},
		{
			ID:          "4",
			Name:        "Quantum Storage Device",
			Price:       499.99,
			Category:    "Storage",
			Stock:       30,
			Image:       "/images/storage.jpg",
			Description: "Ultra-fast quantum storage with infinite capacity simulation.",
		},
		{
			ID:          "5",
			Name:        "AI Smart Watch",
			Price:       799.99,
			Category:    "Wearables",
			Stock:       20,
			Image:       "/images/smartwatch.jpg",
			Description: "Advanced AI companion watch with health monitoring and prediction.",
		},
		{
			ID:          "6",
			Name:        "Cyber Security Suite",
			Price:       199.99,
			Category:    "Software",
			Stock:       100,
			Image:       "/images/security.jpg",
			Description: "Complete cybersecurity solution with AI threat detection.",
		},
	}
}

// DemoUser is the profile the storefront uses before anyone registers.
func DemoUser() User {
	return User{
		ID:    "demo-user",
		Email: "demo@example.com",
		Name:  "Demo User",
	}
}
