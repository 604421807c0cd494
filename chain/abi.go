package chain

// stackSaveABI holds the subset of the StackSave ABI the mirror reads.
const stackSaveABI = `[
  {
    "type": "function",
    "name": "getGoalDetails",
    "stateMutability": "view",
    "inputs": [{"name": "goalId", "type": "uint256"}],
    "outputs": [
      {
        "name": "goal",
        "type": "tuple",
        "components": [
          {"name": "id", "type": "uint256"},
          {"name": "owner", "type": "address"},
          {"name": "currency", "type": "address"},
          {"name": "mode", "type": "uint8"},
          {"name": "targetAmount", "type": "uint256"},
          {"name": "duration", "type": "uint256"},
          {"name": "donationPercentage", "type": "uint256"},
          {"name": "depositedAmount", "type": "uint256"},
          {"name": "createdAt", "type": "uint256"},
          {"name": "lastDepositTime", "type": "uint256"},
          {"name": "status", "type": "uint8"}
        ]
      },
      {"name": "currentValue", "type": "uint256"},
      {"name": "yieldEarned", "type": "uint256"}
    ]
  },
  {
    "type": "event",
    "name": "Deposited",
    "anonymous": false,
    "inputs": [
      {"name": "goalId", "type": "uint256", "indexed": true},
      {"name": "user", "type": "address", "indexed": true},
      {"name": "amount", "type": "uint256", "indexed": false},
      {"name": "vaultShares", "type": "uint256", "indexed": false}
    ]
  },
  {
    "type": "event",
    "name": "WithdrawnCompleted",
    "anonymous": false,
    "inputs": [
      {"name": "goalId", "type": "uint256", "indexed": true},
      {"name": "user", "type": "address", "indexed": true},
      {"name": "principal", "type": "uint256", "indexed": false},
      {"name": "yield", "type": "uint256", "indexed": false},
      {"name": "userYield", "type": "uint256", "indexed": false},
      {"name": "donatedYield", "type": "uint256", "indexed": false}
    ]
  },
  {
    "type": "event",
    "name": "WithdrawnEarly",
    "anonymous": false,
    "inputs": [
      {"name": "goalId", "type": "uint256", "indexed": true},
      {"name": "user", "type": "address", "indexed": true},
      {"name": "amount", "type": "uint256", "indexed": false},
      {"name": "penalty", "type": "uint256", "indexed": false},
      {"name": "penaltyToRewards", "type": "uint256", "indexed": false},
      {"name": "penaltyToTreasury", "type": "uint256", "indexed": false}
    ]
  }
]`
